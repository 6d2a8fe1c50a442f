package normalize

import "strings"

// directionTable maps every accepted spelling of the 8-point compass to
// its canonical single-kanji-or-two-kanji form.
var directionTable = map[string]string{
	"北": "北", "N": "北", "NORTH": "北",
	"南": "南", "S": "南", "SOUTH": "南",
	"東": "東", "E": "東", "EAST": "東",
	"西": "西", "W": "西", "WEST": "西",
	"北東": "北東", "NE": "北東", "NORTHEAST": "北東",
	"北西": "北西", "NW": "北西", "NORTHWEST": "北西",
	"南東": "南東", "SE": "南東", "SOUTHEAST": "南東",
	"南西": "南西", "SW": "南西", "SOUTHWEST": "南西",
}

// directionalEquivalence groups directions the Duplicate finder treats as
// compatible when comparing property structural keys across listings
// whose direction observations don't exactly agree but are adjacent on
// the compass (spec.md §4.6 "compatible direction").
var directionalEquivalence = map[string][]string{
	"北東": {"北", "東"},
	"北西": {"北", "西"},
	"南東": {"南", "東"},
	"南西": {"南", "西"},
}

// Direction normalises a raw compass direction to its canonical form.
// Accepts English abbreviations, full English words, and a "〜向き"
// (-facing) Japanese suffix. Returns "" when unrecognised.
func Direction(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "向き")
	s = strings.TrimSuffix(s, "ムキ")
	if canon, ok := directionTable[s]; ok {
		return canon
	}
	// the table also holds kanji keys; re-check case-preserved input since
	// the ToUpper pass is a no-op on kanji but strips case off English.
	if canon, ok := directionTable[strings.TrimSuffix(strings.TrimSpace(raw), "向き")]; ok {
		return canon
	}
	return ""
}

// CompatibleDirection reports whether two canonical directions are equal
// or related by the directional-equivalence table (e.g. 北東 is
// compatible with both 北 and 東).
func CompatibleDirection(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	for _, d := range directionalEquivalence[a] {
		if d == b {
			return true
		}
	}
	for _, d := range directionalEquivalence[b] {
		if d == a {
			return true
		}
	}
	return false
}
