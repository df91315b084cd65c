// Package safety validates candidate identification results: it corrects
// diet-category misclassification and detects allergens from free text,
// enforcing that an animal-derived dish is never reported as vegan.
package safety

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize case-folds text and strips diacritics so "Tilápia" and "tilapia"
// compare equal.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// tokenize splits normalized text into letter-run words with their positions.
// Word boundaries fall on any non-letter rune, so "decoration" never matches
// the term "ration".
func tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
