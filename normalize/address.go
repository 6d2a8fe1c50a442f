package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// kanjiDigits maps single kanji/circle digits to their Arabic value, used
// both standalone and as a fallback inside the positional kanji-number
// converter below.
var kanjiDigits = map[rune]int{
	'〇': 0, '○': 0,
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

var kanjiPositions = map[rune]int{
	'千': 1000, '百': 100, '十': 10,
}

// kanjiNumberRun matches a contiguous run of digit/position kanji, the
// unit the positional converter below operates on.
var kanjiNumberRun = regexp.MustCompile(`[一二三四五六七八九十百千〇○]+`)

// convertKanjiNumber converts a run like "二千三百四十五" or "十九" to its
// Arabic value, mirroring address_normalizer.py's
// convert_complex_japanese_number. Runs with no positional character
// (千/百/十) are left for the simple digit-substitution pass instead.
func convertKanjiNumber(run string) (string, bool) {
	hasPosition := false
	for _, r := range run {
		if _, ok := kanjiPositions[r]; ok {
			hasPosition = true
			break
		}
	}
	if !hasPosition {
		return run, false
	}

	result := 0
	current := 0
	for _, r := range run {
		if v, ok := kanjiDigits[r]; ok {
			current = v
			continue
		}
		if p, ok := kanjiPositions[r]; ok {
			if current == 0 {
				current = 1
			}
			result += current * p
			current = 0
			continue
		}
		return run, false
	}
	result += current
	return strconv.Itoa(result), true
}

// NormalizeNumbers folds full-width digits and simple/compound kanji
// numerals in text to half-width Arabic numerals.
func NormalizeNumbers(text string) string {
	s := kanjiNumberRun.ReplaceAllStringFunc(text, func(run string) string {
		if converted, ok := convertKanjiNumber(run); ok {
			return converted
		}
		return run
	})

	var b strings.Builder
	for _, r := range s {
		if v, ok := kanjiDigits[r]; ok {
			b.WriteString(strconv.Itoa(v))
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	return width.Fold.String(s)
}

// blockPatterns rewrites the N丁目M番地K号 family of notations into the
// canonical N-M-K dash form, applied most-specific pattern first — a
// direct port of address_normalizer.py's block_patterns cascade.
var blockPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\d+)\s*丁目\s*(\d+)\s*番地?\s*(\d+)\s*号?`), "$1-$2-$3"},
	{regexp.MustCompile(`(\d+)\s*丁目\s*(\d+)\s*[-－−]\s*(\d+)`), "$1-$2-$3"},
	{regexp.MustCompile(`(\d+)\s*丁目\s*(\d+)\s*号`), "$1-$2"},
	{regexp.MustCompile(`(\d+)\s*丁目\s*(\d+)\s*番地?`), "$1-$2"},
	{regexp.MustCompile(`(\d+)\s*丁目(\d*)`), "$1-$2"},
	{regexp.MustCompile(`(\d+)\s*番地?\s*(\d+)\s*号?`), "$1-$2"},
	{regexp.MustCompile(`(\d+)\s*[-－−]\s*(\d+)\s*[-－−]\s*(\d+)`), "$1-$2-$3"},
	{regexp.MustCompile(`(\d+)\s*[-－−]\s*(\d+)`), "$1-$2"},
}

var trailingDash = regexp.MustCompile(`-+$`)
var dashUnify = regexp.MustCompile(`[－−]`)

// NormalizeBlockNumber rewrites the block-number portion of an address
// into the canonical N-M-K dash notation.
func NormalizeBlockNumber(text string) string {
	s := text
	for _, p := range blockPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	s = whitespaceRun.ReplaceAllString(s, "")
	s = dashUnify.ReplaceAllString(s, "-")
	s = trailingDash.ReplaceAllString(s, "")
	return s
}

// addressEndPattern detects the end of the address proper (block number)
// so that trailing UI noise ("地図を見る", parentheticals, "周辺", …) can be
// truncated, per spec.md §4.1.
var addressEndPattern = regexp.MustCompile(
	`[0-9０-９一二三四五六七八九十百千万〇○]+丁目[\s]*[0-9０-９一二三四五六七八九十百千万〇○]+(?:番地?|[-－−])?[\s]*[0-9０-９一二三四五六七八九十百千万〇○]*(?:号|[-－−])?`,
)

var hyphenBlockPattern = regexp.MustCompile(`[0-9０-９]+[-－−][0-9０-９]+(?:[-－−][0-9０-９]+)?`)

var uiNoiseKeywords = []string{"地図", "MAP", "Map", "map", "マップ", "周辺", "詳細", "もっと見る", "アクセス", "※", "＊", "[", "【", "(", "→"}

var parenthetical = regexp.MustCompile(`[（(][^）)]*[）)]`)
var htmlTag = regexp.MustCompile(`<[^>]+>`)

// removeUINoise truncates an address string at the end of its last
// recognisable block-number pattern, dropping trailing scraper UI chrome.
func removeUINoise(addr string) string {
	if addr == "" {
		return ""
	}
	addr = htmlTag.ReplaceAllString(addr, "")

	if loc := addressEndPattern.FindStringIndex(addr); loc != nil {
		return strings.TrimSpace(addr[:loc[1]])
	}
	if loc := hyphenBlockPattern.FindStringIndex(addr); loc != nil {
		return strings.TrimSpace(addr[:loc[1]])
	}

	for _, kw := range uiNoiseKeywords {
		if idx := strings.Index(addr, kw); idx >= 0 {
			addr = addr[:idx]
		}
	}
	return strings.TrimSpace(addr)
}

// Address canonicalises a raw address string: strips UI noise, folds
// numerals, and rewrites the block-number notation to N-M-K.
func Address(raw string) string {
	if raw == "" {
		return ""
	}
	s := removeUINoise(raw)
	s = parenthetical.ReplaceAllString(s, "")
	s = width.Fold.String(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = regexp.MustCompile(`[、。，．]`).ReplaceAllString(s, "")

	s = NormalizeNumbers(s)
	s = NormalizeBlockNumber(s)

	return s
}

// AddressDetailLevel classifies how far down the administrative hierarchy
// an already-normalised address descends: 0=prefecture, 1=ward/city,
// 2=town, 3=chome, 4=banchi, per spec.md §4.1.
func AddressDetailLevel(normalisedAddress string) int {
	if normalisedAddress == "" {
		return 0
	}
	tail := trailingBlockNumber(normalisedAddress)
	if tail == "" {
		switch {
		case strings.HasSuffix(normalisedAddress, "区") || strings.HasSuffix(normalisedAddress, "市"):
			return 1
		case strings.HasSuffix(normalisedAddress, "都") || strings.HasSuffix(normalisedAddress, "道") ||
			strings.HasSuffix(normalisedAddress, "府") || strings.HasSuffix(normalisedAddress, "県"):
			return 0
		default:
			return 2
		}
	}
	switch strings.Count(tail, "-") {
	case 0:
		return 3
	default:
		return 4
	}
}

var trailingBlockRe = regexp.MustCompile(`(\d+(?:-\d+)*)$`)

func trailingBlockNumber(s string) string {
	m := trailingBlockRe.FindString(s)
	return m
}

// AddressPrefix returns the prefix of a normalised address truncated to at
// most `level` block-number components (used for prefix-chain matching in
// the building step — the "either side a prefix of the other" rule).
func AddressPrefix(normalisedAddress string, level int) string {
	tail := trailingBlockNumber(normalisedAddress)
	if tail == "" {
		return normalisedAddress
	}
	parts := strings.Split(tail, "-")
	if level < 0 {
		level = 0
	}
	if level >= len(parts) {
		return normalisedAddress
	}
	head := normalisedAddress[:len(normalisedAddress)-len(tail)]
	return head + strings.Join(parts[:level], "-")
}

// IsPrefixChainPartner reports whether a and b are the same address at
// different completion levels: one is a string prefix of the other.
func IsPrefixChainPartner(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
