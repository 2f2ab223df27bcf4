// Package text provides utilities for text processing shared by the feed
// reader, the annotators and the digest renderers.
package text

import (
	"strings"
	"unicode/utf8"
)

// CountRunes counts the number of Unicode characters (runes) in the given text.
// Multi-byte characters (CJK, emoji) count as one each, so thresholds behave the
// same regardless of the feed's language.
//
// Examples:
//
//	CountRunes("hello")      // returns 5
//	CountRunes("héllo")      // returns 5
//	CountRunes("")           // returns 0
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate shortens text to at most limit runes, appending suffix when it cuts.
// The suffix counts toward the limit. A non-positive limit returns the text unchanged.
func Truncate(text string, limit int, suffix string) string {
	if limit <= 0 || CountRunes(text) <= limit {
		return text
	}
	keep := limit - CountRunes(suffix)
	if keep <= 0 {
		return string([]rune(suffix)[:limit])
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:keep]), isSpace) + suffix
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
