package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxMessageLength = 1000

var (
	htmlTagPattern        = regexp.MustCompile(`<[^>]*>`)
	scriptProtocolPattern = regexp.MustCompile(`(?i)javascript:`)
)

// SanitizeMessageText strips HTML tags and script-protocol substrings, then
// trims. Passes repeat until nothing changes, so removing one match can never
// expose a new one in the result.
func SanitizeMessageText(raw string) string {
	text := raw
	for {
		next := htmlTagPattern.ReplaceAllString(text, "")
		next = scriptProtocolPattern.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == text {
			return next
		}
		text = next
	}
}

// ValidateMessageText sanitizes raw and enforces 1..MaxMessageLength characters.
func ValidateMessageText(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: message text is not valid UTF-8", ErrValidation)
	}
	text := SanitizeMessageText(raw)

	length := utf8.RuneCountInString(text)
	if length == 0 {
		return "", fmt.Errorf("%w: message text is empty", ErrValidation)
	}
	if length > MaxMessageLength {
		return "", fmt.Errorf("%w: message text exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	return text, nil
}

// Preview cuts text to limit characters and marks the cut with an ellipsis.
func Preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
