package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tagPattern = regexp.MustCompile(`<.*?>`)

// SanitizeText strips markup and control characters from user text.
func SanitizeText(input string) string {
	cleaned := tagPattern.ReplaceAllString(input, "")
	cleaned = html.EscapeString(cleaned)
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}

// Preview sanitizes user text and cuts it to at most limit runes for logs.
func Preview(input string, limit int) string {
	cleaned := SanitizeText(input)
	if utf8.RuneCountInString(cleaned) <= limit {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:limit]) + "…"
}
