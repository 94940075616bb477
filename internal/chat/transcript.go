// Package chat orchestrates reads, mutations, and streaming turns across the
// RPC client, the streaming client, and the cache coordinator.
package chat

import (
	"sync"

	"github.com/ashureev/agentchat/internal/domain"
)

// Transcript is the in-memory message log of one open conversation. It is
// never persisted by this layer; the server owns durable transcripts.
//
// A streaming turn appends the user message plus an empty assistant
// placeholder up front, then mutates only the trailing element as deltas
// arrive, strictly in arrival order.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewTranscript creates a transcript seeded with existing messages, typically
// from a fetched conversation detail.
func NewTranscript(seed []domain.Message) *Transcript {
	messages := make([]domain.Message, len(seed))
	copy(messages, seed)
	return &Transcript{messages: messages}
}

// Messages returns a copy of the current message log.
func (t *Transcript) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Last returns the trailing message, if any.
func (t *Transcript) Last() (domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return domain.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// BeginTurn appends the outgoing user message and an empty assistant
// placeholder that subsequent deltas accumulate into.
func (t *Transcript) BeginTurn(userMessage string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages,
		domain.Message{Role: domain.RoleUser, Content: userMessage},
		domain.Message{Role: domain.RoleAssistant, Content: ""},
	)
}

// AppendDelta concatenates one delta onto the trailing assistant placeholder.
// No-op when no turn is open.
func (t *Transcript) AppendDelta(delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return
	}
	last := &t.messages[len(t.messages)-1]
	if last.Role != domain.RoleAssistant {
		return
	}
	last.Content += delta
}
