// Package stream consumes the server-push channel that carries one chat turn.
package stream

// Frame statuses. Every turn is a sequence of RUNNING frames closed by
// exactly one END or ERROR frame.
const (
	StatusRunning = "RUNNING"
	StatusEnd     = "END"
	StatusError   = "ERROR"
)

// Frame is one decoded event from the streaming channel. RUNNING frames may
// carry no DeltaContent at all (pure moderation/usage metadata); those still
// reach OnFrame but contribute nothing to the accumulated text.
type Frame struct {
	StreamStatus            string         `json:"stream_status"`
	DeltaContent            string         `json:"delta_content,omitempty"`
	Status                  string         `json:"status,omitempty"`
	ErrorMessage            string         `json:"error_message,omitempty"`
	ChatCompleted           bool           `json:"chat_completed,omitempty"`
	Usage                   map[string]any `json:"usage,omitempty"`
	AIGuard                 map[string]any `json:"ai_guard,omitempty"`
	UserMessageMasked       bool           `json:"user_message_masked,omitempty"`
	AssistantMessageMasked  bool           `json:"assistant_message_masked,omitempty"`
	AssistantMessageBlocked bool           `json:"assistant_message_blocked,omitempty"`
}

// Running reports whether this is a non-terminal frame.
func (f *Frame) Running() bool {
	return f.StreamStatus == StatusRunning
}

// DocRef points a turn at an existing server-side document.
type DocRef struct {
	Doctype string `json:"doctype"`
	Name    string `json:"name"`
}

// TextContext attaches ad-hoc text to a turn.
type TextContext struct {
	ID       string         `json:"id,omitempty"`
	Label    string         `json:"label,omitempty"`
	Type     string         `json:"type,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TurnRequest is the JSON body of a streaming send.
type TurnRequest struct {
	ChatID      string        `json:"chat_history_name"`
	Message     string        `json:"message"`
	DocData     []DocRef      `json:"doc_data,omitempty"`
	TextContext []TextContext `json:"text_context,omitempty"`
}

// Handlers receive the turn's events. OnFrame fires for every decoded frame;
// exactly one of OnEnd or OnError fires to close the turn, never both, never
// neither. All callbacks are delivered sequentially from a single goroutine.
type Handlers struct {
	OnFrame func(*Frame)
	OnError func(error)
	OnEnd   func(*Frame)
}

func (h Handlers) frame(f *Frame) {
	if h.OnFrame != nil {
		h.OnFrame(f)
	}
}

func (h Handlers) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handlers) end(f *Frame) {
	if h.OnEnd != nil {
		h.OnEnd(f)
	}
}
