// Package rpc issues authenticated request/response calls against the remote
// method-style API.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/agentchat/internal/errs"
	"github.com/ashureev/agentchat/internal/session"
)

const methodBasePath = "/api/method/"

const maxResponseBodySize = 8 << 20 // 8MB

// Client wraps the raw Call primitive plus the typed method wrappers.
// It never retries; retry policy belongs to the caller.
type Client struct {
	session      *session.Manager
	methodPrefix string
	logger       *slog.Logger
}

// NewClient creates an RPC client. The session manager supplies base URL,
// HTTP client, and authentication headers.
func NewClient(sm *session.Manager, methodPrefix string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		session:      sm,
		methodPrefix: methodPrefix,
		logger:       logger,
	}
}

// URLForMethod resolves a method path to a full URL. Paths already rooted at
// the method base are used as-is.
func (c *Client) URLForMethod(methodPath string) string {
	if strings.HasPrefix(methodPath, methodBasePath) {
		return c.session.BaseURL() + methodPath
	}
	return c.session.BaseURL() + methodBasePath + methodPath
}

// method builds the app-prefixed method path for a short method name.
func (c *Client) method(name string) string {
	return c.methodPrefix + "." + name
}

// Call performs one authenticated request. payload, when non-nil, is sent as
// a JSON body. Non-2xx responses fail with *errs.RequestError; a 2xx response
// with an empty or non-JSON body resolves to nil rather than failing.
func (c *Client) Call(ctx context.Context, methodPath, httpMethod string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for %s: %w", methodPath, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.URLForMethod(methodPath), body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", methodPath, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range c.session.AuthHeaders(ctx) {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.session.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", methodPath, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "method", methodPath, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", methodPath, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.RequestError{
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(data),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// unwrap peels the conventional {message: ...} envelope when present,
// otherwise returns the raw body.
func unwrap(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != nil {
		return envelope.Message
	}
	return raw
}
