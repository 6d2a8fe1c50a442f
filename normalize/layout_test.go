package normalize

import "testing"

func TestLayoutCanonicalForms(t *testing.T) {
	cases := map[string]string{
		"3LDK":     "3LDK",
		"１ＬＤＫ": "1LDK",
		"ワンルーム": "1R",
		"2DK":      "2DK",
		"S1K":      "S1K",
	}
	for raw, want := range cases {
		got := Layout(raw)
		if got != want {
			t.Errorf("Layout(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestLayoutRejectsCorruption(t *testing.T) {
	if Layout("3LDK1") != "" {
		t.Error("expected corrupted trailing-digit layout to be rejected")
	}
}

func TestLayoutIdempotent(t *testing.T) {
	for _, raw := range []string{"3LDK", "ワンルーム", "S2DK"} {
		l1 := Layout(raw)
		l2 := Layout(l1)
		if l1 != l2 {
			t.Errorf("Layout not idempotent for %q: %q != %q", raw, l1, l2)
		}
	}
}
