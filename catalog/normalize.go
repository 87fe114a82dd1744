package catalog

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text for exact lookup and fuzzy comparison:
// fold to lowercase, replace punctuation and other separators with a
// single space, collapse runs of whitespace, and trim the ends.
//
// The same function is applied to catalog terms at load time and to
// queries at match time, so the two sides always compare in the same
// form.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true // suppress leading space
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Tokens returns the whitespace-separated tokens of the normalized text.
func Tokens(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}
