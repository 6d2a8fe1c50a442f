package normalize

import (
	"regexp"
	"strings"
)

// layoutGrammar matches the canonical layout grammar: a room count
// followed by one of R/K/DK/LDK/SLDK/SDK/SK, with an optional leading S
// (service room) when not already implied by the suffix.
var layoutGrammar = regexp.MustCompile(`^S?[1-9]\d*(?:R|K|DK|LDK|SLDK|SDK|SK)$`)

var layoutExtract = regexp.MustCompile(`^(S)?([1-9]\d*)(LDK|SLDK|SDK|DK|SK|K|R)$`)

// Layout normalises a raw layout string to the canonical grammar, e.g.
// "ワンルーム" -> "1R", "３ＬＤＫ" -> "3LDK". Returns "" when the input
// cannot be parsed into the grammar (the whole string, after folding and
// whitespace trimming, must match — a trailing corruption like "3LDK1"
// is rejected, not truncated).
func Layout(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = foldDigitsUpper(s)
	s = whitespaceRun.ReplaceAllString(s, "")

	if s == "ワンルーム" || s == "1ルーム" {
		return "1R"
	}

	m := layoutExtract.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1] + m[2] + m[3]
}

// ValidLayout reports whether s conforms exactly to the canonical layout
// grammar. layoutGrammar's trailing suffix anchor already rejects a
// corrupted tail like "3LDK1" (it doesn't end in a known suffix), so this
// is the sole check.
func ValidLayout(s string) bool {
	return s != "" && layoutGrammar.MatchString(s)
}

// foldDigitsUpper folds full-width digits/Latin to half-width via the
// shared width.Fold pass and upper-cases the result.
func foldDigitsUpper(s string) string {
	return strings.ToUpper(foldWidth(s))
}
