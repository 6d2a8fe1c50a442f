package normalize

import "testing"

func TestDirectionAcceptsVariants(t *testing.T) {
	cases := map[string]string{
		"南":     "南",
		"南東":    "南東",
		"NE":    "北東",
		"S":     "南",
		"南向き":   "南",
		"SOUTH": "南",
	}
	for raw, want := range cases {
		got := Direction(raw)
		if got != want {
			t.Errorf("Direction(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCompatibleDirection(t *testing.T) {
	if !CompatibleDirection("北東", "北") {
		t.Error("expected 北東 compatible with 北")
	}
	if CompatibleDirection("北", "南") {
		t.Error("expected 北 incompatible with 南")
	}
	if !CompatibleDirection("南", "南") {
		t.Error("expected identical directions compatible")
	}
}
