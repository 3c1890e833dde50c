package chatbot

import "strings"

const (
	bulletMarker = "•"
	bulletIndent = "    "
)

// FormatReply splits assistant text into display lines, indenting bullet lines
func FormatReply(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, bulletMarker) {
			lines[i] = bulletIndent + line
		}
	}
	return lines
}

// maskKey hides all but the last four characters of a credential
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
