package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/stream"
)

// handleStream runs one chat turn over the push channel: a RUNNING frame per
// word of the reply, then a single END frame. Client disconnects abort the
// loop but the turn's messages are already committed up front.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req stream.TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[req.ChatID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", req.ChatID))
		return
	}
	reply := composeReply(conv.agent, req.Message)
	conv.messages = append(conv.messages,
		domain.Message{Role: domain.RoleUser, Content: req.Message},
		domain.Message{Role: domain.RoleAssistant, Content: reply},
	)
	conv.summary.Modified = time.Now().UTC().Format(time.RFC3339)
	s.mu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.StreamDelay):
		}
		writeFrame(w, flusher, stream.Frame{
			StreamStatus: stream.StatusRunning,
			DeltaContent: word,
		})
	}

	writeFrame(w, flusher, stream.Frame{
		StreamStatus:  stream.StatusEnd,
		ChatCompleted: true,
		Usage: map[string]any{
			"input_tokens":  len(strings.Fields(req.Message)),
			"output_tokens": len(words),
		},
	})
}

// writeFrame emits one event in text/event-stream framing.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame stream.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// composeReply fabricates a deterministic assistant reply. Deterministic
// output keeps end-to-end tests stable.
func composeReply(agent, message string) string {
	agentLabel := agent
	if agentLabel == "" {
		agentLabel = "assistant"
	}
	return fmt.Sprintf("The %s received your message of %d characters and this is its reply.",
		agentLabel, len(message))
}
