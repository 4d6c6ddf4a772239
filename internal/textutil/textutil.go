package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize trims, collapses inner whitespace and composes the text into
// NFC, so "Tiểu" typed with combining marks matches the stored form.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

// Fold is the comparison key used for case-insensitive matching.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// HasPrefixFold reports whether s starts with prefix, ignoring case and
// Unicode composition differences. An empty prefix matches everything.
func HasPrefixFold(s, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(Fold(s), Fold(prefix))
}
