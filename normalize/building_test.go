package normalize

import "testing"

func TestBuildingNameIdempotent(t *testing.T) {
	cases := []string{
		"パークコート　赤坂",
		"東京タワーレジデンスⅢ",
		"グランドメゾン１０１",
		"",
	}
	for _, raw := range cases {
		n1, c1 := BuildingName(raw)
		n2, c2 := BuildingName(n1)
		if n1 != n2 {
			t.Errorf("normalised form not idempotent for %q: %q != %q", raw, n1, n2)
		}
		if c1 != c2 {
			t.Errorf("canonical form not idempotent for %q: %q != %q", raw, c1, c2)
		}
	}
}

func TestBuildingNameUnitsAndRoman(t *testing.T) {
	normalised, _ := BuildingName("ｸﾞﾗﾝﾄﾞﾒｿﾞﾝⅢ　５０㎡")
	if normalised == "" {
		t.Fatal("expected non-empty normalised name")
	}
}

func TestExtractRoomNumberKeepsShortTrailingDigits(t *testing.T) {
	name, room := ExtractRoomNumber("パークハウス12")
	if room != "" {
		t.Errorf("expected no room number extracted from 2-digit tail, got %q", room)
	}
	if name != "パークハウス12" {
		t.Errorf("expected name unchanged, got %q", name)
	}
}

func TestExtractRoomNumberExtractsThreeDigitTail(t *testing.T) {
	name, room := ExtractRoomNumber("パークハウス101")
	if room != "101" {
		t.Errorf("expected room 101, got %q", room)
	}
	if name != "パークハウス" {
		t.Errorf("expected building name without room, got %q", name)
	}
}

func TestExtractRoomNumberWithSuffix(t *testing.T) {
	name, room := ExtractRoomNumber("東京タワー 2003号")
	if room != "2003" {
		t.Errorf("expected room 2003, got %q", room)
	}
	if name != "東京タワー" {
		t.Errorf("expected clean name, got %q", name)
	}
}

func TestExtractRoomNumberSkipsFloorSuffix(t *testing.T) {
	name, room := ExtractRoomNumber("マンション5階")
	if room != "" {
		t.Errorf("expected no room number for a floor suffix, got %q", room)
	}
	if name != "マンション5階" {
		t.Errorf("expected name unchanged, got %q", name)
	}
}
