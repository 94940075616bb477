// Package creds persists session identity and login hints, namespaced per
// server origin. Storage failures are swallowed here by design: the caller
// always sees "no credentials" rather than an error, so the client degrades
// to re-authentication instead of breaking.
package creds

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/kv"
)

const hintsKey = "auth:hints"

// Store persists Session and LoginHints through a kv.Store.
type Store struct {
	kv     kv.Store
	origin string
	logger *slog.Logger
}

// NewStore creates a credential store scoped to the given server base URL.
func NewStore(store kv.Store, serverBaseURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     store,
		origin: originFrom(serverBaseURL),
		logger: logger,
	}
}

// Origin returns the namespace this store writes session entries under.
func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) sessionKey() string {
	return s.origin + ":session"
}

// SaveSession persists the session. A session without a SID is invalid and is
// never written.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) {
	if !session.Valid() {
		s.logger.Warn("refusing to persist session without sid")
		return
	}
	data, err := json.Marshal(session)
	if err != nil {
		s.logger.Warn("marshal session failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.sessionKey(), data); err != nil {
		s.logger.Warn("persist session failed", "error", err)
	}
}

// LoadSession returns the stored session, or nil when absent, unreadable, or
// invalid.
func (s *Store) LoadSession(ctx context.Context) *domain.Session {
	data, err := s.kv.Get(ctx, s.sessionKey())
	if err != nil {
		s.logger.Debug("load session failed", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.Debug("decode session failed", "error", err)
		return nil
	}
	if !session.Valid() {
		return nil
	}
	return &session
}

// ClearSession removes the stored session. Idempotent.
func (s *Store) ClearSession(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.sessionKey()); err != nil {
		s.logger.Warn("clear session failed", "error", err)
	}
}

// SaveLoginHints merges the given hints over any stored ones. Best effort.
func (s *Store) SaveLoginHints(ctx context.Context, hints domain.LoginHints) {
	merged := hints
	if current := s.LoadLoginHints(ctx); current != nil {
		if merged.LastServerURL == "" {
			merged.LastServerURL = current.LastServerURL
		}
		if merged.LastUsername == "" {
			merged.LastUsername = current.LastUsername
		}
	}
	data, err := json.Marshal(merged)
	if err != nil {
		s.logger.Debug("marshal login hints failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, hintsKey, data); err != nil {
		s.logger.Debug("persist login hints failed", "error", err)
	}
}

// LoadLoginHints returns the stored hints, or nil when absent or unreadable.
func (s *Store) LoadLoginHints(ctx context.Context) *domain.LoginHints {
	data, err := s.kv.Get(ctx, hintsKey)
	if err != nil || data == nil {
		return nil
	}
	var hints domain.LoginHints
	if err := json.Unmarshal(data, &hints); err != nil {
		return nil
	}
	return &hints
}

// originFrom reduces a URL to its scheme://host origin. Falls back to the raw
// string when it does not parse, keeping the namespace stable either way.
func originFrom(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
