// internal/handlers/sanitize_test.go
package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Alice", "Alice"},
		{"  Bob <script>", "Bobscript"},
		{"Вася_Пупкин-1", "Вася_Пупкин-1"},
		{"a b\tc", "abc"},
		{"room#1234", "room1234"},
		{"", ""},
		{"é", "é"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeInput(tt.in), "input %q", tt.in)
	}

	long := strings.Repeat("я", 80)
	assert.Equal(t, 50, len([]rune(sanitizeInput(long))))
}

func TestSanitizeLanguage(t *testing.T) {
	assert.Equal(t, "ru", sanitizeLanguage("ru"))
	assert.Equal(t, "uk", sanitizeLanguage(" UK "))
	assert.Equal(t, "en", sanitizeLanguage("de"))
	assert.Equal(t, "en", sanitizeLanguage(""))
}

func TestSanitizeChat(t *testing.T) {
	assert.Equal(t, "hi there!", sanitizeChat("  hi there!\n"))
	assert.Equal(t, "ab", sanitizeChat("a\x00b"))
	assert.Len(t, []rune(sanitizeChat(strings.Repeat("x", 300))), 200)
}
