package creds

import (
	"context"
	"testing"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/kv"
)

func newTestStore(t *testing.T, serverURL string) *Store {
	t.Helper()
	backing, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = backing.Close() })
	return NewStore(backing, serverURL, nil)
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "https://chat.example.com")

	store.SaveSession(ctx, &domain.Session{
		SID:       "abc123",
		CSRFToken: "token",
		Username:  "user@example.com",
	})

	got := store.LoadSession(ctx)
	if got == nil {
		t.Fatal("expected stored session")
	}
	if got.SID != "abc123" || got.CSRFToken != "token" || got.Username != "user@example.com" {
		t.Errorf("loaded session = %+v", got)
	}

	store.ClearSession(ctx)
	if store.LoadSession(ctx) != nil {
		t.Error("session survived clear")
	}
	// Clearing an empty store must not panic or log errors.
	store.ClearSession(ctx)
}

func TestSaveSessionRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "https://chat.example.com")

	store.SaveSession(ctx, &domain.Session{SID: "", Username: "user"})
	if store.LoadSession(ctx) != nil {
		t.Error("invalid session was persisted")
	}
}

func TestSessionsNamespacedPerOrigin(t *testing.T) {
	ctx := context.Background()
	backing, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = backing.Close() })

	a := NewStore(backing, "https://one.example.com/some/path", nil)
	b := NewStore(backing, "https://two.example.com", nil)

	a.SaveSession(ctx, &domain.Session{SID: "sid-a", Username: "a"})
	if b.LoadSession(ctx) != nil {
		t.Error("session leaked across origins")
	}
	if got := a.LoadSession(ctx); got == nil || got.SID != "sid-a" {
		t.Errorf("origin a session = %+v", got)
	}
	if a.Origin() != "https://one.example.com" {
		t.Errorf("origin = %q, want scheme://host only", a.Origin())
	}
}

func TestLoginHintsMerge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "https://chat.example.com")

	store.SaveLoginHints(ctx, domain.LoginHints{
		LastServerURL: "https://chat.example.com",
		LastUsername:  "user@example.com",
	})
	// A partial update must not wipe the other field.
	store.SaveLoginHints(ctx, domain.LoginHints{LastUsername: "other@example.com"})

	got := store.LoadLoginHints(ctx)
	if got == nil {
		t.Fatal("expected stored hints")
	}
	if got.LastUsername != "other@example.com" {
		t.Errorf("LastUsername = %q", got.LastUsername)
	}
	if got.LastServerURL != "https://chat.example.com" {
		t.Errorf("LastServerURL = %q", got.LastServerURL)
	}
}
