// Package prompt assembles retrieved chunks into a cited context block and builds the
// grounded messages sent to the chat model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mike-a-ellis/prepme-rag/internal/answer"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

// Fallback is the exact reply the model is told to give when the context does not
// contain the answer.
const Fallback = "I don't know from the provided documents."

// SystemInstruction restricts the model to the supplied context.
const SystemInstruction = "You are a study-notes assistant. " +
	"Answer ONLY using the provided context. " +
	"If context is insufficient, say you don't know. " +
	"Do not use outside knowledge."

const userTemplate = `Context:
%s

Question:
%s

Rules:
- Use ONLY the context above.
- If the answer isn't in context, say exactly: "%s"
- Be concise but complete.
`

// Assemble renders hits in rank order as
//
//	[rank] Source: <source> (chunk <index>)
//	<text>
//
// with a blank line between blocks. Missing metadata prints as "unknown" and -1.
// No hits yields an empty string.
func Assemble(hits []storage.Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[%d] Source: %s (chunk %d)\n%s",
			i+1, h.Metadata.SourceOrDefault(), h.Metadata.ChunkIndexOrDefault(), h.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// UserMessage wraps the context and question with the grounding rules.
func UserMessage(context, query string) string {
	return fmt.Sprintf(userTemplate, context, query, Fallback)
}

// BuildMessages returns the system instruction, the replayed history and the grounded
// question, in that order. history should already be windowed; see answer.History.
func BuildMessages(context, query string, history []answer.Message) []answer.Message {
	messages := make([]answer.Message, 0, len(history)+2)
	messages = append(messages, answer.Message{Role: answer.RoleSystem, Content: SystemInstruction})
	messages = append(messages, history...)
	messages = append(messages, answer.Message{Role: answer.RoleUser, Content: UserMessage(context, query)})
	return messages
}
