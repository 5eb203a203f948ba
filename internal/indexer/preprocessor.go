package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before chunking: it trims, collapses
// runs of whitespace to one space, and drops other control characters that
// PDF and mail readers leave behind.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
