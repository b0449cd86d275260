package yarn

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is the atomic unit of a discussion.
type Message struct {
	ID        string    `json:"id"`
	Ordinal   int       `json:"ordinal"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a Message with a generated UUID.
func NewMessage(ordinal int, speaker, text string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Ordinal:   ordinal,
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// WithModel records the backend that generated the message.
func (m *Message) WithModel(model string) *Message {
	m.Model = model
	return m
}

// IsEmpty reports whether the message has no visible text.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == ""
}

// Validate checks if the message is valid.
func (m *Message) Validate() *ValidationError {
	if m.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if m.Ordinal < 0 {
		return &ValidationError{Field: "ordinal", Message: "ordinal cannot be negative"}
	}
	if m.Speaker == "" {
		return &ValidationError{Field: "speaker", Message: "speaker is required"}
	}
	if m.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp is required"}
	}
	return nil
}

// Window returns the last k messages, oldest first. k <= 0 yields none.
// Messages are never split.
func Window(msgs []*Message, k int) []*Message {
	if k <= 0 {
		return nil
	}
	if k > len(msgs) {
		k = len(msgs)
	}
	out := make([]*Message, k)
	copy(out, msgs[len(msgs)-k:])
	return out
}
