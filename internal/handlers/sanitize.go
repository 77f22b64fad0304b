// internal/handlers/sanitize.go
package handlers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxInputLen = 50
	maxChatLen  = 200
)

// Languages the clients ship translations for. The first entry is the fallback.
var supportedLanguages = []string{"en", "ru", "uk"}

var disallowedInput = regexp.MustCompile(`[^\p{L}\p{N}_-]`)

// sanitizeInput normalises s to NFC, drops everything but letters, digits, '_'
// and '-', and caps the result at 50 runes.
func sanitizeInput(s string) string {
	s = disallowedInput.ReplaceAllString(norm.NFC.String(s), "")
	return truncateRunes(s, maxInputLen)
}

// sanitizeLanguage maps anything outside the supported set to the fallback.
func sanitizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, lang := range supportedLanguages {
		if s == lang {
			return s
		}
	}
	return supportedLanguages[0]
}

// sanitizeChat strips control characters, trims and caps chat text at 200 runes.
func sanitizeChat(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, norm.NFC.String(s))
	return truncateRunes(strings.TrimSpace(s), maxChatLen)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
