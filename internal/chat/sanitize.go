package chat

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize prepares chat text for a terminal display: escape sequences and
// control characters are removed and surrounding space is trimmed.
func Sanitize(text string) string {
	text = ansi.Strip(text)
	text = strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
