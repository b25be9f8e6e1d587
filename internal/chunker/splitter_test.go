package chunker

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%03d", i)
	}
	return strings.Join(parts, " ")
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{0, 0},
		{-5, 0},
		{100, 100},
		{100, 150},
		{100, -1},
	}

	for _, tt := range tests {
		_, err := New(tt.size, tt.overlap)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "size=%d overlap=%d", tt.size, tt.overlap)
	}
}

func TestSplit_HardCutsThousandChars(t *testing.T) {
	s, err := New(400, 100, WithBaseDir("/work"))
	require.NoError(t, err)

	doc := document.Document{Source: "/work/a.txt", Text: strings.Repeat("a", 1000)}
	chunks := s.Split([]document.Document{doc})

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 400)
		assert.Equal(t, i, c.Metadata.ChunkIndexOrDefault())
		assert.Equal(t, "a.txt", c.Metadata.SourceOrDefault())
	}

	// chunk 1 starts inside chunk 0's tail
	overlap := chunks[0].End - chunks[1].Start
	assert.Greater(t, overlap, 0)
	assert.LessOrEqual(t, overlap, 100)
	assert.Equal(t, 1000, chunks[2].End)
}

func TestSplit_ProseThousandChars(t *testing.T) {
	s, err := New(400, 100, WithBaseDir("/work"))
	require.NoError(t, err)

	sentence := "The quick brown fox jumps over the lazy dog near the river bank. "
	text := strings.Repeat(sentence, 20)[:1000]
	doc := document.Document{Source: "/work/prose.txt", Text: text, Origin: document.OriginFile}
	chunks := s.Split([]document.Document{doc})

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Metadata.ChunkIndexOrDefault())
		assert.LessOrEqual(t, len([]rune(c.Text)), 400)
	}

	// chunk 1 starts inside the last 100 runes of chunk 0
	assert.Less(t, chunks[1].Start, chunks[0].End)
	assert.GreaterOrEqual(t, chunks[1].Start, chunks[0].End-100)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."), "chunk 0 should end on a sentence: %q", chunks[0].Text)
	assert.Equal(t, len([]rune(Normalize(text))), chunks[2].End)
}

func TestSplit_StepsBySizeMinusOverlap(t *testing.T) {
	s, err := New(400, 100)
	require.NoError(t, err)

	text := "Short one. A somewhat longer sentence follows here! Then a question? " + words(150)
	chunks := s.Split([]document.Document{{Source: "mixed.txt", Text: text, Origin: document.OriginRemote}})
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].Start, chunks[i-1].Start+300, "chunk %d", i)
		assert.LessOrEqual(t, chunks[i-1].End-chunks[i].Start, 100, "chunk %d", i)
	}
}

func TestSplit_Coverage(t *testing.T) {
	s, err := New(120, 30)
	require.NoError(t, err)

	text := "Intro sentence here. " + words(200) + ". Closing line!\n\nAnother   paragraph."
	normalized := []rune(Normalize(text))

	chunks := s.Split([]document.Document{{Source: "notes.txt", Text: text, Origin: document.OriginRemote}})
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(normalized), chunks[len(chunks)-1].End)

	for i, c := range chunks {
		assert.LessOrEqual(t, c.End-c.Start, 120, "chunk %d too long", i)
		assert.Equal(t, strings.TrimSpace(string(normalized[c.Start:c.End])), c.Text)
		if i > 0 {
			prev := chunks[i-1]
			assert.LessOrEqual(t, c.Start, prev.End, "gap before chunk %d", i)
			assert.Greater(t, c.Start, prev.Start, "no progress at chunk %d", i)
			assert.LessOrEqual(t, prev.End-c.Start, 30, "overlap too large at chunk %d", i)
		}
	}
}

func TestSplit_PrefersWordBoundaries(t *testing.T) {
	s, err := New(50, 10)
	require.NoError(t, err)

	for _, text := range s.SplitText(words(60)) {
		for _, w := range strings.Fields(text) {
			assert.Len(t, w, len("word000"), "chunk %q cut through a word", text)
		}
	}
}

func TestSplit_PrefersSentenceBoundaries(t *testing.T) {
	s, err := New(40, 0)
	require.NoError(t, err)

	text := "The quick brown fox jumps over it. The lazy dog sleeps all day long in the sun."
	chunks := s.SplitText(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "The quick brown fox jumps over it.", chunks[0])
}

func TestSplit_GlobalRunningIndex(t *testing.T) {
	s, err := New(20, 5)
	require.NoError(t, err)

	docs := []document.Document{
		{Source: "a.txt", Text: words(10), Origin: document.OriginRemote},
		{Source: "b.txt", Text: words(10), Origin: document.OriginRemote},
	}
	chunks := s.Split(docs)

	for i, c := range chunks {
		assert.Equal(t, i, c.Metadata.ChunkIndexOrDefault())
	}
	assert.Equal(t, "a.txt", chunks[0].Metadata.SourceOrDefault())
	assert.Equal(t, "b.txt", chunks[len(chunks)-1].Metadata.SourceOrDefault())
}

func TestSplit_Deterministic(t *testing.T) {
	docs := []document.Document{{Source: "a.txt", Text: words(300), Origin: document.OriginRemote}}

	s1, err := New(200, 40)
	require.NoError(t, err)
	s2, err := New(200, 40)
	require.NoError(t, err)

	first := s1.Split(docs)
	second := s2.Split(docs)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, document.Key(first[i].Metadata), document.Key(second[i].Metadata))
	}
}

func TestSplit_EmptyDocumentProducesNoChunks(t *testing.T) {
	s, err := New(100, 10)
	require.NoError(t, err)

	chunks := s.Split([]document.Document{
		{Source: "empty.txt", Text: "  \n\t ", Origin: document.OriginRemote},
		{Source: "b.txt", Text: "short", Origin: document.OriginRemote},
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, "b.txt::chunk_0", document.Key(chunks[0].Metadata))
}

func TestSplit_RelativeSourcePaths(t *testing.T) {
	base := t.TempDir()
	s, err := New(100, 10, WithBaseDir(base))
	require.NoError(t, err)

	abs := filepath.Join(base, "data", "week1.txt")
	chunks := s.Split([]document.Document{{Source: abs, Text: "hello", Origin: document.OriginFile}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "data/week1.txt", chunks[0].Metadata.SourceOrDefault())
}

func TestSplit_RemoteSourcesUntouched(t *testing.T) {
	s, err := New(100, 10, WithBaseDir("/somewhere"))
	require.NoError(t, err)

	chunks := s.Split([]document.Document{{
		Source: "github.com/acme/notes/week1.md",
		Text:   "hello",
		Origin: document.OriginRemote,
	}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "github.com/acme/notes/week1.md", chunks[0].Metadata.SourceOrDefault())
}
