// Package templates provides message rendering helpers and templ components.
package templates

import (
	"strings"
	"unicode/utf8"
)

// HTMLBreaks replaces every CR and LF with "<br>".
func HTMLBreaks(s string) string {
	return strings.NewReplacer("\r", "<br>", "\n", "<br>").Replace(s)
}

// XHTMLBreaks replaces every LF with "<br/>".
func XHTMLBreaks(s string) string {
	return strings.ReplaceAll(s, "\n", "<br/>")
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}
