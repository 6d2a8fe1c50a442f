package normalize

import "testing"

func TestParsePriceOkuMan(t *testing.T) {
	got, ok := ParsePrice("1億2000万円")
	if !ok || got != 12000 {
		t.Errorf("got (%d, %v), want (12000, true)", got, ok)
	}
}

func TestParsePriceManOnly(t *testing.T) {
	got, ok := ParsePrice("5,800万円")
	if !ok || got != 5800 {
		t.Errorf("got (%d, %v), want (5800, true)", got, ok)
	}
}

func TestParseAreaSquareMeters(t *testing.T) {
	got, ok := ParseArea("75.32㎡")
	if !ok || got != 75.32 {
		t.Errorf("got (%v, %v), want (75.32, true)", got, ok)
	}
}

func TestParseFloorInfoCombinedForm(t *testing.T) {
	info := ParseFloorInfo("4階/SRC地上12階地下1階建")
	if !info.FloorOK || info.Floor != 4 {
		t.Errorf("floor = (%d, %v), want (4, true)", info.Floor, info.FloorOK)
	}
	if !info.TotalFloorsOK || info.TotalFloors != 12 {
		t.Errorf("total floors = (%d, %v), want (12, true)", info.TotalFloors, info.TotalFloorsOK)
	}
	if !info.BasementOK || info.BasementFloors != 1 {
		t.Errorf("basement floors = (%d, %v), want (1, true)", info.BasementFloors, info.BasementOK)
	}
}

func TestParseBuiltDateWareki(t *testing.T) {
	year, yearOK, month, monthOK := ParseBuiltDate("平成30年5月")
	if !yearOK || year != 2018 {
		t.Errorf("year = (%d, %v), want (2018, true)", year, yearOK)
	}
	if !monthOK || month != 5 {
		t.Errorf("month = (%d, %v), want (5, true)", month, monthOK)
	}
}

func TestParseBuiltDateWarekiGannen(t *testing.T) {
	year, yearOK, _, _ := ParseBuiltDate("令和元年")
	if !yearOK || year != 2019 {
		t.Errorf("year = (%d, %v), want (2019, true)", year, yearOK)
	}
}

func TestParseBuiltDateWestern(t *testing.T) {
	year, yearOK, month, monthOK := ParseBuiltDate("2015年3月")
	if !yearOK || year != 2015 {
		t.Errorf("year = (%d, %v), want (2015, true)", year, yearOK)
	}
	if !monthOK || month != 3 {
		t.Errorf("month = (%d, %v), want (3, true)", month, monthOK)
	}
}

func TestValidRanges(t *testing.T) {
	if !ValidPrice(15800) {
		t.Error("expected 15800 to be a valid price")
	}
	if ValidPrice(50) {
		t.Error("expected 50 to be below the minimum price")
	}
	if !ValidArea(75.3) {
		t.Error("expected 75.3 to be a valid area")
	}
	if ValidArea(5) {
		t.Error("expected 5 to be below the minimum area")
	}
	if !ValidFloor(12) {
		t.Error("expected 12 to be a valid floor")
	}
	if ValidFloor(-10) {
		t.Error("expected -10 to be below the minimum floor")
	}
	if !ValidBuiltYear(2015) {
		t.Error("expected 2015 to be a valid built year")
	}
	if ValidBuiltYear(1800) {
		t.Error("expected 1800 to be below the minimum built year")
	}
}
