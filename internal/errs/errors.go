// Package errs defines the error taxonomy shared across the data-access layer.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration rejects an insecure or non-allow-listed endpoint.
	// Fatal and not retryable; no network call is made once this fires.
	ErrConfiguration = errors.New("endpoint rejected by configuration")

	// ErrAuthentication reports bad credentials. The stored session is left absent.
	ErrAuthentication = errors.New("invalid credentials")

	// ErrProtocol reports a malformed or unparseable server response, such as a
	// login response carrying no session identifier.
	ErrProtocol = errors.New("malformed server response")
)

// RequestError carries a non-2xx RPC response back to the caller.
// The client never retries these; retry policy belongs to the caller.
type RequestError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed: %d %s", e.Status, e.StatusText)
	}
	return fmt.Sprintf("request failed: %d %s - %s", e.Status, e.StatusText, e.Body)
}

// StreamError resolves a chat turn that did not complete normally: a transport
// failure, a server-reported error frame, or premature closure via the disposer.
type StreamError struct {
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream: %s: %v", e.Message, e.Cause)
	}
	return "stream: " + e.Message
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}
