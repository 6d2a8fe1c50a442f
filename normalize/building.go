// Package normalize canonicalises the free-text and numeric fields a
// portal scrape produces into the grammar the Resolver and Aggregator
// require. Grounded on original_source's building_name_normalizer.py,
// address_normalizer.py and advanced_building_matcher.py — the regex
// cascades and lookup tables below are direct ports of those modules'
// semantics, re-expressed with Go's regexp/strings/unicode.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var romanNumerals = []struct {
	full string
	half string
}{
	{"Ⅰ", "I"}, {"Ⅱ", "II"}, {"Ⅲ", "III"}, {"Ⅳ", "IV"}, {"Ⅴ", "V"},
	{"Ⅵ", "VI"}, {"Ⅶ", "VII"}, {"Ⅷ", "VIII"}, {"Ⅸ", "IX"}, {"Ⅹ", "X"},
	{"Ⅺ", "XI"}, {"Ⅻ", "XII"},
}

// symbolFold collapses both half-width and full-width dash/middot/wave-dash
// glyphs into a single space, mirroring the Python module's single regex.
var symbolFold = regexp.MustCompile(`[・\x{30fb}\x{2010}-\x{2015}\x{301c}\-~]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// BuildingName produces the display (normalised_name) and search
// (canonical_name) forms of a raw building-name string, per spec.md §4.1.
func BuildingName(raw string) (normalisedName, canonicalName string) {
	if raw == "" {
		return "", ""
	}

	// width.Fold maps fullwidth ASCII/digits to their narrow form and
	// halfwidth kana to their canonical fullwidth form in one pass.
	s := width.Fold.String(raw)

	s = symbolFold.ReplaceAllString(s, " ")

	for _, rn := range romanNumerals {
		s = strings.ReplaceAll(s, rn.full, rn.half)
	}

	s = strings.ReplaceAll(s, "㎡", "m2")
	s = strings.ReplaceAll(s, "m²", "m2")

	s = strings.ToUpper(s)

	s = strings.ReplaceAll(s, "　", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	normalisedName = s
	canonicalName = whitespaceRun.ReplaceAllString(s, "")
	return normalisedName, canonicalName
}

// roomNumberTrailing matches a 3-4 digit trailing number, optionally with
// preceding whitespace and a trailing 号/号室 suffix.
var roomNumberTrailing = regexp.MustCompile(`^(.*?)\s*(\d{3,4})\s*(?:号室|号)?$`)

// floorSuffix excludes "N階" endings from being mistaken for room numbers.
var floorSuffix = regexp.MustCompile(`\d+階$`)

// ExtractRoomNumber splits a trailing plausible room number (3-4 digits)
// off a building-name-like string, per spec.md §4.1. 1-2 digit trailing
// runs are left in place — they are not room numbers by policy.
func ExtractRoomNumber(s string) (name string, roomNumber string) {
	if s == "" {
		return "", ""
	}
	if floorSuffix.MatchString(s) {
		return s, ""
	}
	if m := roomNumberTrailing.FindStringSubmatch(s); m != nil {
		clean := strings.TrimSpace(m[1])
		if clean != "" {
			return clean, m[2]
		}
	}
	return s, ""
}

// towerSuffixPattern matches the building-tower suffixes that policy
// preserves as distinguishing ("A棟", "EAST", "東棟", …): letters/kanji
// immediately followed by 棟, or a bare compass/English tower word.
var towerSuffixPattern = regexp.MustCompile(`(?i)([A-Z]|[東西南北])棟$|(EAST|WEST|NORTH|SOUTH)$`)

// HasTowerSuffix reports whether s carries a building-tower suffix that
// must NOT be folded away when comparing two building names.
func HasTowerSuffix(s string) bool {
	return towerSuffixPattern.MatchString(s)
}
