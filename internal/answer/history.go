// Package answer generates grounded answers with an OpenAI-compatible chat API and keeps
// the conversation history that is replayed for continuity.
package answer

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultHistoryWindow is how many past messages are replayed with each question.
const DefaultHistoryWindow = 6

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the conversation so far. It keeps every turn but only the most recent
// window messages are replayed. History is never used as evidence, only for continuity.
// Not safe for concurrent use.
type History struct {
	messages []Message
	window   int
}

// NewHistory creates an empty history. A negative window is treated as zero.
func NewHistory(window int) *History {
	return &History{window: max(window, 0)}
}

// Append records a question and the answer given to it.
func (h *History) Append(question, answer string) {
	h.messages = append(h.messages,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: answer},
	)
}

// Recent returns a copy of the last window messages, oldest first.
func (h *History) Recent() []Message {
	if h == nil || h.window == 0 || len(h.messages) == 0 {
		return nil
	}
	start := max(len(h.messages)-h.window, 0)
	out := make([]Message, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

// Len returns the number of recorded messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Clear forgets every turn.
func (h *History) Clear() {
	h.messages = nil
}
