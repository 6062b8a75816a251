package games

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameRunes = 50

// SanitizeName trims the name, drops control characters and collapses runs
// of whitespace.
func SanitizeName(name string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" || utf8.RuneCountInString(cleaned) > maxNameRunes {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return cleaned, nil
}
