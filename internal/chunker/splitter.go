// Package chunker splits normalized document text into overlapping windows.
package chunker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

// ErrInvalidConfig is returned for a non-positive chunk size or an overlap that is
// negative or not smaller than the chunk size.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// sentenceSeparators are tried before falling back to word boundaries.
// Paragraph and line breaks do not survive Normalize, so they are not listed.
var sentenceSeparators = []string{". ", "? ", "! ", "; "}

// Splitter produces overlapping windows of at most Size runes.
type Splitter struct {
	size    int
	overlap int
	baseDir string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithBaseDir sets the directory that filesystem sources are made relative to.
// Defaults to the process working directory.
func WithBaseDir(dir string) Option {
	return func(s *Splitter) {
		s.baseDir = dir
	}
}

// New creates a Splitter. It fails with ErrInvalidConfig unless size > 0 and
// 0 <= overlap < size.
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidConfig, size, overlap)
	}

	s := &Splitter{size: size, overlap: overlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			s.baseDir = wd
		}
	}
	return s, nil
}

// Split chunks every document in input order. chunk_index is a running counter over the
// whole output, not reset per document.
func (s *Splitter) Split(docs []document.Document) []document.Chunk {
	var chunks []document.Chunk
	next := 0

	for _, doc := range docs {
		source := s.sourcePath(doc)
		text := []rune(Normalize(doc.Text))

		for _, w := range s.windows(text) {
			chunkText := strings.TrimSpace(string(text[w[0]:w[1]]))
			if chunkText == "" {
				continue
			}
			chunks = append(chunks, document.Chunk{
				Text:     chunkText,
				Metadata: document.NewMetadata(source, next),
				Start:    w[0],
				End:      w[1],
			})
			next++
		}
	}

	return chunks
}

// SplitText returns the chunk texts for a single string. Used by tests and tooling.
func (s *Splitter) SplitText(text string) []string {
	runes := []rune(Normalize(text))
	var out []string
	for _, w := range s.windows(runes) {
		if t := strings.TrimSpace(string(runes[w[0]:w[1]])); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// windows returns [start, end) rune ranges covering text with no gaps.
// A window is cut inside its last stretch of runes: after a sentence separator if one is
// there, otherwise after a space, otherwise at a hard cut. The next window starts at the
// first word at or after start+size-overlap, so consecutive windows share at most overlap
// runes and every step advances by at least size-overlap when a word break allows it.
func (s *Splitter) windows(text []rune) [][2]int {
	n := len(text)
	var out [][2]int

	start := 0
	for start < n {
		end := start + s.size
		if end >= n {
			out = append(out, [2]int{start, n})
			break
		}

		cut := s.breakPoint(text, start, end)
		out = append(out, [2]int{start, cut})
		start = s.nextStart(text, start+s.size-s.overlap, cut)
	}

	return out
}

// lookback is how far before the window end a break point may lie.
func (s *Splitter) lookback() int {
	return max(s.overlap, s.size/4)
}

// breakPoint picks the cut for a window [start, end). The cut is always greater than start.
func (s *Splitter) breakPoint(text []rune, start, end int) int {
	lo := max(start+1, end-s.lookback())

	for _, sep := range sentenceSeparators {
		if p := lastSeparatorEnd(text, sep, lo, end); p > 0 {
			return p
		}
	}

	if p := lastSeparatorEnd(text, " ", lo, end); p > 0 {
		return p
	}

	return end
}

// nextStart returns the first word start in [from, cut). When the range holds none it
// returns cut if cut is itself a word start, else from.
func (s *Splitter) nextStart(text []rune, from, cut int) int {
	if from >= cut {
		return cut
	}
	for p := from; p < cut; p++ {
		if p == 0 || text[p-1] == ' ' {
			return p
		}
	}
	if text[cut-1] == ' ' {
		return cut
	}
	return from
}

// lastSeparatorEnd returns the largest position p in [lo, hi] such that sep ends right
// before p, or 0 if there is none.
func lastSeparatorEnd(text []rune, sep string, lo, hi int) int {
	sr := []rune(sep)
	for p := hi; p >= lo && p >= len(sr); p-- {
		if runesEqual(text[p-len(sr):p], sr) {
			return p
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sourcePath makes filesystem sources relative to the base directory so the same file
// yields the same identifier regardless of how its path was spelled when loaded.
func (s *Splitter) sourcePath(doc document.Document) string {
	if doc.Origin != document.OriginFile || doc.Source == "" || s.baseDir == "" {
		return doc.Source
	}

	abs, err := filepath.Abs(doc.Source)
	if err != nil {
		return filepath.ToSlash(doc.Source)
	}
	rel, err := filepath.Rel(s.baseDir, abs)
	if err != nil {
		return filepath.ToSlash(doc.Source)
	}
	return filepath.ToSlash(rel)
}
