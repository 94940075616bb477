package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/kv"
)

func newTestCoordinator(t *testing.T, maxAge time.Duration) *Coordinator {
	t.Helper()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewCoordinator(store, maxAge, nil)
}

func TestAgentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, 0)

	if _, ok := c.LoadAgents(ctx, 0); ok {
		t.Fatal("cold cache reported a hit")
	}

	agents := []domain.Agent{{Name: "general-assistant", AIModel: "gpt-4o"}}
	c.SaveAgents(ctx, agents)

	got, ok := c.LoadAgents(ctx, 0)
	if !ok {
		t.Fatal("warm cache reported a miss")
	}
	if len(got) != 1 || got[0].Name != "general-assistant" {
		t.Errorf("agents = %+v", got)
	}

	c.ClearAgents(ctx)
	if _, ok := c.LoadAgents(ctx, 0); ok {
		t.Error("cleared partition reported a hit")
	}
	c.ClearAgents(ctx) // idempotent
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, 10*time.Millisecond)

	c.SaveProjects(ctx, []domain.Project{{Name: "PROJ-0001"}})
	if _, ok := c.LoadProjects(ctx, 0); !ok {
		t.Fatal("entry missing immediately after save")
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.LoadProjects(ctx, 0); ok {
		t.Error("expired entry reported as fresh")
	}
}

func TestPerCallMaxAgeOverride(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, time.Hour)

	c.SaveRecent(ctx, []domain.Conversation{{Name: "CHAT-0001"}})
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.LoadRecent(ctx, time.Nanosecond); ok {
		t.Error("tight per-call max-age still reported a hit")
	}
	if _, ok := c.LoadRecent(ctx, 0); !ok {
		t.Error("coordinator default max-age reported a miss")
	}
}

func TestRecentPersistCap(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, 0)

	oversized := make([]domain.Conversation, RecentPersistCap+50)
	for i := range oversized {
		oversized[i] = domain.Conversation{Name: fmt.Sprintf("CHAT-%04d", i)}
	}
	c.SaveRecent(ctx, oversized)

	got, ok := c.LoadRecent(ctx, 0)
	if !ok {
		t.Fatal("recent partition missing after save")
	}
	if len(got) != RecentPersistCap {
		t.Errorf("persisted %d conversations, want cap %d", len(got), RecentPersistCap)
	}
	if got[0].Name != "CHAT-0000" {
		t.Errorf("truncation dropped the head: %+v", got[0])
	}
}

func TestProjectPartitionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, 0)

	c.SaveProjectConversations(ctx, "alpha", []domain.Conversation{{Name: "CHAT-0001"}})
	c.SaveProjectConversations(ctx, "beta", []domain.Conversation{{Name: "CHAT-0002"}})

	c.ClearProjectConversations(ctx, "alpha")
	if _, ok := c.LoadProjectConversations(ctx, "alpha", 0); ok {
		t.Error("cleared partition reported a hit")
	}
	if got, ok := c.LoadProjectConversations(ctx, "beta", 0); !ok || got[0].Name != "CHAT-0002" {
		t.Errorf("unrelated partition affected: %+v ok=%v", got, ok)
	}
}

func TestClearAllDropsEveryPartition(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, 0)

	c.SaveAgents(ctx, []domain.Agent{{Name: "a"}})
	c.SaveProjects(ctx, []domain.Project{{Name: "p"}})
	c.SaveRecent(ctx, []domain.Conversation{{Name: "r"}})
	c.SaveProjectConversations(ctx, "alpha", []domain.Conversation{{Name: "c"}})
	c.SaveProjectConversations(ctx, "beta", []domain.Conversation{{Name: "d"}})

	c.ClearAll(ctx)

	if _, ok := c.LoadAgents(ctx, 0); ok {
		t.Error("agents survived ClearAll")
	}
	if _, ok := c.LoadProjects(ctx, 0); ok {
		t.Error("projects survived ClearAll")
	}
	if _, ok := c.LoadRecent(ctx, 0); ok {
		t.Error("recent survived ClearAll")
	}
	for _, project := range []string{"alpha", "beta"} {
		if _, ok := c.LoadProjectConversations(ctx, project, 0); ok {
			t.Errorf("project %s partition survived ClearAll", project)
		}
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	c := NewCoordinator(store, 0, nil)

	if err := store.Set(ctx, "cache:agents:list", []byte("not json")); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	if _, ok := c.LoadAgents(ctx, 0); ok {
		t.Error("corrupt entry reported as a hit")
	}
}
