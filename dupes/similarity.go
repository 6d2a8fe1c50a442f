// Package dupes builds human-reviewable groups of likely-duplicate
// buildings and properties over the existing corpus (spec.md §4.6),
// grounded on the teacher's candidate-query-then-score shape in
// services/match.go, generalised from a single scorer into transitive
// grouping with exclusion handling.
package dupes

import (
	"strings"

	"condocore/models"
	"condocore/normalize"
)

// towerVariantPrefixes are the leading "ザ・"/"THE " bridging prefixes in
// canonical form (canonical names carry no spaces or middots), stripped
// when expanding a building name into variants for comparison. Only this
// prefix is varied: tower suffixes ("A棟", "EAST", …), abbreviations and
// katakana/English spellings are compared as written.
var towerVariantPrefixes = []string{"ザ", "THE"}

// nameVariants expands a canonical building name into the small set of
// forms worth comparing against a counterpart — stripping a leading
// "ザ・"/"THE " bridging prefix, since portals disagree on whether to
// transliterate it.
func nameVariants(canonical string) []string {
	out := []string{canonical}
	for _, p := range towerVariantPrefixes {
		if strings.HasPrefix(canonical, p) {
			out = append(out, strings.TrimPrefix(canonical, p))
		}
	}
	return out
}

// sequenceRatio is a SequenceMatcher-style similarity ratio: twice the
// longest-common-subsequence length over the combined length of both
// strings. No fuzzy-string-matching library appears anywhere in the
// example corpus, so this and trigramJaccard below are hand-rolled;
// see DESIGN.md.
func sequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	lcs := lcsLength(ra, rb)
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// trigramJaccard measures token-level similarity using rune trigrams,
// since normalised Japanese building names carry no reliable word
// boundaries to tokenise on.
func trigramJaccard(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func trigrams(s string) map[string]bool {
	r := []rune(s)
	out := make(map[string]bool)
	if len(r) < 3 {
		if len(r) > 0 {
			out[string(r)] = true
		}
		return out
	}
	for i := 0; i+3 <= len(r); i++ {
		out[string(r[i:i+3])] = true
	}
	return out
}

// nameScore is the maximum similarity over the cartesian product of both
// sides' name variants, each compared by both sequenceRatio and
// trigramJaccard.
func nameScore(a, b string) float64 {
	best := 0.0
	for _, va := range nameVariants(a) {
		for _, vb := range nameVariants(b) {
			if r := sequenceRatio(va, vb); r > best {
				best = r
			}
			if j := trigramJaccard(va, vb); j > best {
				best = j
			}
		}
	}
	return best
}

// addressScore decomposes both normalised addresses into their
// prefecture/city/town text head (normalize.AddressPrefix at level 0) and
// their block-number tail, scoring the town-level head as a gate and the
// block-number vector element-wise, with differing chome on the same town
// scored 0.3 rather than 0.
func addressScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	headA, headB := normalize.AddressPrefix(a, 0), normalize.AddressPrefix(b, 0)
	if headA != headB {
		if normalize.IsPrefixChainPartner(a, b) {
			return 0.6
		}
		return 0
	}

	blockA := strings.TrimPrefix(a, headA)
	blockB := strings.TrimPrefix(b, headB)
	if blockA == "" || blockB == "" {
		return 0.9
	}
	va, oka := blockVector(blockA)
	vb, okb := blockVector(blockB)
	if !oka || !okb {
		return 0.7
	}
	if va[0] != vb[0] {
		return 0.3
	}
	matches := 1
	for i := 1; i < 3; i++ {
		if va[i] == vb[i] {
			matches++
		}
	}
	return 0.3 + 0.7*float64(matches)/3
}

func blockVector(s string) ([3]int, bool) {
	parts := strings.Split(strings.Trim(s, "-"), "-")
	var v [3]int
	if len(parts) == 0 {
		return v, false
	}
	for i := 0; i < 3 && i < len(parts); i++ {
		n := 0
		any := false
		for _, r := range parts[i] {
			if r < '0' || r > '9' {
				continue
			}
			any = true
			n = n*10 + int(r-'0')
		}
		if !any {
			return v, false
		}
		v[i] = n
	}
	return v, true
}

// attributeScore compares built_year(+month), total_floors, total_units
// per spec.md §4.6's graded rules.
func attributeScore(a, b *models.Building) float64 {
	total, count := 0.0, 0

	if a.BuiltYear != nil && b.BuiltYear != nil {
		diff := abs(*a.BuiltYear - *b.BuiltYear)
		s := 0.0
		switch {
		case diff == 0:
			s = 1
		case diff == 1:
			s = 0.2
		case diff == 2:
			s = 0.1
		}
		if diff == 0 && a.BuiltMonth != nil && b.BuiltMonth != nil && *a.BuiltMonth != *b.BuiltMonth {
			s = 0.3
		}
		total += s
		count++
	}
	if a.TotalFloors != nil && b.TotalFloors != nil {
		diff := abs(*a.TotalFloors - *b.TotalFloors)
		s := 0.0
		switch {
		case diff == 0:
			s = 1
		case diff == 1:
			s = 0.5
		case diff == 2:
			s = 0.3
		}
		total += s
		count++
	}
	if a.TotalUnits != nil && b.TotalUnits != nil {
		if *a.TotalUnits == *b.TotalUnits {
			total += 1
		}
		count++
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// BuildingSimilarity is the weighted composite score of spec.md §4.6, with
// its rule-based overrides applied after the weighted sum.
func BuildingSimilarity(a, b *models.Building) float64 {
	name := nameScore(a.CanonicalName, b.CanonicalName)
	addr := addressScore(a.NormalizedAddress, b.NormalizedAddress)
	attrs := attributeScore(a, b)

	score := 0.4*name + 0.35*addr + 0.25*attrs

	if addr >= 0.95 && attrs >= 0.9 && score < 0.92 {
		score = 0.92
	}
	if addr == 0 && name >= 0.9 && attrs >= 0.8 && score < 0.85 {
		score = 0.85
	}
	if score > 1 {
		score = 1
	}
	return score
}
