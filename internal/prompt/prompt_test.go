package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/prepme-rag/internal/answer"
	"github.com/mike-a-ellis/prepme-rag/internal/document"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

func TestAssemble(t *testing.T) {
	hits := []storage.Hit{
		{Text: "Channels synchronize goroutines.", Metadata: document.NewMetadata("data/go.txt", 3)},
		{Text: "Maps are not safe for concurrent writes.", Metadata: document.NewMetadata("data/maps.md", 7)},
	}

	want := "[1] Source: data/go.txt (chunk 3)\nChannels synchronize goroutines.\n\n" +
		"[2] Source: data/maps.md (chunk 7)\nMaps are not safe for concurrent writes."
	assert.Equal(t, want, Assemble(hits))
}

func TestAssemble_MissingMetadata(t *testing.T) {
	hits := []storage.Hit{{Text: "orphan"}}
	assert.Equal(t, "[1] Source: unknown (chunk -1)\norphan", Assemble(hits))
}

func TestAssemble_Empty(t *testing.T) {
	assert.Equal(t, "", Assemble(nil))
}

func TestBuildMessages(t *testing.T) {
	history := []answer.Message{
		{Role: answer.RoleUser, Content: "earlier q"},
		{Role: answer.RoleAssistant, Content: "earlier a"},
	}

	msgs := BuildMessages("[1] Source: a.txt (chunk 0)\ntext", "What is it?", history)
	require.Len(t, msgs, 4)

	assert.Equal(t, answer.RoleSystem, msgs[0].Role)
	assert.Equal(t, SystemInstruction, msgs[0].Content)
	assert.Equal(t, history, msgs[1:3])

	last := msgs[3]
	assert.Equal(t, answer.RoleUser, last.Role)
	assert.Contains(t, last.Content, "Context:\n[1] Source: a.txt (chunk 0)\ntext")
	assert.Contains(t, last.Content, "Question:\nWhat is it?")
	assert.Contains(t, last.Content, `say exactly: "I don't know from the provided documents."`)
}

func TestBuildMessages_NoHistory(t *testing.T) {
	msgs := BuildMessages("", "q", nil)
	require.Len(t, msgs, 2)
	assert.Equal(t, answer.RoleSystem, msgs[0].Role)
	assert.Equal(t, answer.RoleUser, msgs[1].Role)
}
