package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims input and cuts it to maxLen characters.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	return string([]rune(trimmed)[:maxLen])
}
