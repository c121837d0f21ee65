package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics: decompose to NFD, drop combining marks,
// recompose. Built once; transform.Chain values are safe for concurrent use
// via transform.String.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds text to its canonical comparable form: diacritics stripped,
// lowercased, whitespace runs collapsed to single spaces, trimmed.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		// Transform only fails on malformed input; fall back to the raw text
		// so normalization never errors out.
		folded = text
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
