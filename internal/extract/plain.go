package extract

import (
	"strings"
	"unicode/utf8"
)

// cleanText replaces invalid UTF-8 with the replacement character and trims surrounding space.
func cleanText(content []byte) string {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return strings.TrimSpace(string(content))
}
