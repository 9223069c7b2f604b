// Package utils provides shared utilities for text and logging.
package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s cut to maxLen characters, with "..." appended if truncated.
// Counting is by rune so multi-byte characters are never split.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// CollapseSpace replaces every run of whitespace with a single space and trims the ends.
// Extracted document text keeps the page's line breaks, which read badly in one-line previews.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripControl drops C0 and C1 control characters other than newline and tab,
// so untrusted text cannot carry terminal escape sequences.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}
