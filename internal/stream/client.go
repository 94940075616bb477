package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/ashureev/agentchat/internal/errs"
	"github.com/ashureev/agentchat/internal/session"
)

const methodBasePath = "/api/method/"

// maxEventSize bounds a single pushed event. Deltas are small; anything
// larger indicates a broken channel.
const maxEventSize = 1 << 20 // 1MB

// Turn lifecycle. A turn opens on Send and closes exactly once.
type turnState int

const (
	turnOpen turnState = iota
	turnCompleted
	turnErrored
	turnCancelled
)

// turn tracks the single-terminal invariant for one streaming exchange.
// Callbacks are only ever invoked by the reader goroutine; the disposer just
// records intent and unblocks the reader.
type turn struct {
	mu        sync.Mutex
	state     turnState
	cancelled bool
}

// close transitions Open -> to, reporting whether this call won the
// transition. Only the winner may fire the terminal callback.
func (t *turn) close(to turnState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != turnOpen {
		return false
	}
	t.state = to
	return true
}

func (t *turn) requestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
}

func (t *turn) cancelRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Client opens streaming chat turns. Independent of the request/response RPC
// client; only the session manager is shared.
type Client struct {
	session    *session.Manager
	methodPath string
	logger     *slog.Logger
}

// NewClient creates a streaming client for the given send method path.
func NewClient(sm *session.Manager, methodPath string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		session:    sm,
		methodPath: methodPath,
		logger:     logger,
	}
}

// Send opens the push channel for one chat turn and consumes it on a
// background goroutine. The returned disposer closes the channel; invoked
// before a terminal frame it synthesizes a premature-closure error so the
// turn still ends in exactly one terminal callback.
func (c *Client) Send(ctx context.Context, req TurnRequest, h Handlers) (func(), error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal turn request: %w", err)
	}

	ctx, cancelCtx := context.WithCancel(ctx)

	url := c.session.BaseURL() + methodBasePath + c.methodPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("build turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	for key, values := range c.session.AuthHeaders(ctx) {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	t := &turn{}
	go c.run(t, httpReq, h)

	disposer := func() {
		t.requestCancel()
		cancelCtx()
	}
	return disposer, nil
}

// run owns the whole life of one turn: request, decode loop, terminal event.
func (c *Client) run(t *turn, req *http.Request, h Handlers) {
	resp, err := c.session.Client().Do(req)
	if err != nil {
		c.finish(t, h, nil, err)
		return
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close stream body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxEventSize))
		c.finish(t, h, nil, &errs.RequestError{
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(data),
		})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) == 0 {
				continue
			}
			payload := strings.Join(data, "\n")
			data = data[:0]

			frame, err := decodeFrame(payload)
			if err != nil {
				c.finish(t, h, nil, err)
				return
			}
			if t.cancelRequested() {
				break
			}

			h.frame(frame)

			switch frame.StreamStatus {
			case StatusEnd:
				if t.close(turnCompleted) {
					h.end(frame)
				}
				return
			case StatusError:
				if t.close(turnErrored) {
					h.fail(&errs.StreamError{Message: frame.ErrorMessage})
				}
				return
			}
			continue
		}

		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
		// id:, event:, retry: and comment lines carry nothing we need.
	}

	c.finish(t, h, scanner.Err(), nil)
}

// decodeFrame parses one event payload. Any decode failure is fatal to the
// whole turn; garbled frames are never skipped.
func decodeFrame(payload string) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return nil, &errs.StreamError{
			Message: "malformed stream frame",
			Cause:   fmt.Errorf("%w: %v", errs.ErrProtocol, err),
		}
	}
	return &frame, nil
}

// finish resolves a turn that ended without a terminal frame: cancellation,
// transport failure, or the server closing the channel early.
func (c *Client) finish(t *turn, h Handlers, scanErr error, cause error) {
	if t.cancelRequested() {
		if t.close(turnCancelled) {
			h.fail(&errs.StreamError{Message: "stream closed before completion"})
		}
		return
	}
	if !t.close(turnErrored) {
		return
	}
	switch {
	case cause != nil:
		h.fail(wrapStreamErr(cause))
	case scanErr != nil:
		h.fail(&errs.StreamError{Message: "stream transport failed", Cause: scanErr})
	default:
		h.fail(&errs.StreamError{Message: "stream ended without terminal frame"})
	}
}

func wrapStreamErr(err error) error {
	if _, ok := err.(*errs.StreamError); ok {
		return err
	}
	return &errs.StreamError{Message: "stream request failed", Cause: err}
}
