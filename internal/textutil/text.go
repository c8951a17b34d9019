package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Truncate returns at most limit runes of value. A non-positive limit
// returns value unchanged.
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	count := 0
	for i := range value {
		if count == limit {
			return value[:i]
		}
		count++
	}
	return value
}

// CollapseSpace trims value and replaces internal whitespace runs with a
// single space.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Fold returns the NFC-normalized, Unicode case-folded form of value.
func Fold(value string) string {
	// cases.Caser is stateful; build one per call.
	return cases.Fold().String(norm.NFC.String(value))
}

// ContainsFold reports whether needle occurs in haystack, ignoring case.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}
