// Package domain contains core domain types for the agent chat client.
package domain

// SIDJarManaged marks a session whose cookie lives in the HTTP client's
// cookie jar rather than being echoed explicitly on each request.
const SIDJarManaged = "jar-managed"

// Session is the server-issued proof of authenticated identity.
type Session struct {
	SID       string `json:"sid"`
	CSRFToken string `json:"csrf_token,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Valid reports whether the session carries a session identifier.
// A session without one must never be persisted or surfaced.
func (s *Session) Valid() bool {
	return s != nil && s.SID != ""
}

// JarManaged reports whether the session cookie is held by the transport.
func (s *Session) JarManaged() bool {
	return s != nil && s.SID == SIDJarManaged
}

// LoginHints is best-effort UX memory updated on every successful login.
// Never required for correctness and not security-sensitive.
type LoginHints struct {
	LastServerURL string `json:"last_server_url,omitempty"`
	LastUsername  string `json:"last_username,omitempty"`
}
