package normalize

import "golang.org/x/text/width"

// foldWidth folds fullwidth ASCII/digits to halfwidth and halfwidth kana
// to its canonical fullwidth form — the one width-folding primitive every
// other normaliser in this package builds on.
func foldWidth(s string) string {
	return width.Fold.String(s)
}
