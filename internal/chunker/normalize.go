package chunker

import (
	"strings"
	"unicode"
)

// Normalize collapses every whitespace run, non-breaking spaces included, into a single
// ASCII space and trims both ends. Chunk text is only deterministic if the same
// normalization is applied on every ingestion run.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
