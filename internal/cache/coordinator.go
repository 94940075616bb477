// Package cache implements the time-bounded local cache partitions and their
// invalidation rules. Entries older than a partition's max-age are treated as
// absent on read (logical eviction); storage failures degrade to cache
// misses, never to errors.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/kv"
)

// Partition keys. Per-project conversation lists hang off the prefix, one
// entry per project ever opened.
const (
	keyAgents        = "cache:agents:list"
	keyProjects      = "cache:projects:list"
	keyRecent        = "cache:recentChats:list"
	keyProjectPrefix = "cache:projectConversations:"
)

// DefaultMaxAge bounds staleness for every partition unless overridden per
// call. Skipped invalidations self-heal within this window.
const DefaultMaxAge = time.Hour

// Caps on the recent (unfiled) conversation list.
const (
	RecentPersistCap = 100
	RecentDisplayCap = 200
)

// entry wraps a partition payload with its write timestamp.
type entry struct {
	StoredAt int64           `json:"t"` // epoch millis
	Payload  json.RawMessage `json:"payload"`
}

// Coordinator owns every cache partition. Constructed once at startup and
// passed by reference; there is no package-level state.
type Coordinator struct {
	store  kv.Store
	maxAge time.Duration
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the given store. maxAge <= 0
// selects DefaultMaxAge.
func NewCoordinator(store kv.Store, maxAge time.Duration, logger *slog.Logger) *Coordinator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, maxAge: maxAge, logger: logger}
}

// save timestamps and stores one partition value as a whole entry.
func save[T any](ctx context.Context, c *Coordinator, key string, value T) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("marshal cache payload failed", "key", key, "error", err)
		return
	}
	data, err := json.Marshal(entry{StoredAt: time.Now().UnixMilli(), Payload: payload})
	if err != nil {
		c.logger.Warn("marshal cache entry failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("persist cache entry failed", "key", key, "error", err)
	}
}

// load returns the stored value only while younger than maxAge (0 selects the
// coordinator default). Everything else, including storage errors, is a miss.
func load[T any](ctx context.Context, c *Coordinator, key string, maxAge time.Duration) (T, bool) {
	var zero T
	if maxAge <= 0 {
		maxAge = c.maxAge
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Debug("read cache entry failed", "key", key, "error", err)
		return zero, false
	}
	if data == nil {
		return zero, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Debug("decode cache entry failed", "key", key, "error", err)
		return zero, false
	}
	if time.Since(time.UnixMilli(e.StoredAt)) > maxAge {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(e.Payload, &value); err != nil {
		c.logger.Debug("decode cache payload failed", "key", key, "error", err)
		return zero, false
	}
	return value, true
}

func (c *Coordinator) clear(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("clear cache entry failed", "key", key, "error", err)
	}
}

// SaveAgents stores the agent list.
func (c *Coordinator) SaveAgents(ctx context.Context, agents []domain.Agent) {
	save(ctx, c, keyAgents, agents)
}

// LoadAgents returns the cached agent list if fresh. maxAge 0 selects the
// coordinator default.
func (c *Coordinator) LoadAgents(ctx context.Context, maxAge time.Duration) ([]domain.Agent, bool) {
	return load[[]domain.Agent](ctx, c, keyAgents, maxAge)
}

// ClearAgents drops the agent partition. Idempotent.
func (c *Coordinator) ClearAgents(ctx context.Context) {
	c.clear(ctx, keyAgents)
}

// SaveProjects stores the project list.
func (c *Coordinator) SaveProjects(ctx context.Context, projects []domain.Project) {
	save(ctx, c, keyProjects, projects)
}

// LoadProjects returns the cached project list if fresh.
func (c *Coordinator) LoadProjects(ctx context.Context, maxAge time.Duration) ([]domain.Project, bool) {
	return load[[]domain.Project](ctx, c, keyProjects, maxAge)
}

// ClearProjects drops the project partition. Idempotent.
func (c *Coordinator) ClearProjects(ctx context.Context) {
	c.clear(ctx, keyProjects)
}

// SaveRecent stores the unfiled conversation list, truncated to the persist
// cap.
func (c *Coordinator) SaveRecent(ctx context.Context, conversations []domain.Conversation) {
	if len(conversations) > RecentPersistCap {
		conversations = conversations[:RecentPersistCap]
	}
	save(ctx, c, keyRecent, conversations)
}

// LoadRecent returns the cached unfiled conversation list if fresh.
func (c *Coordinator) LoadRecent(ctx context.Context, maxAge time.Duration) ([]domain.Conversation, bool) {
	return load[[]domain.Conversation](ctx, c, keyRecent, maxAge)
}

// ClearRecent drops the unfiled conversation partition. Idempotent.
func (c *Coordinator) ClearRecent(ctx context.Context) {
	c.clear(ctx, keyRecent)
}

// SaveProjectConversations stores one project's conversation list.
func (c *Coordinator) SaveProjectConversations(ctx context.Context, project string, conversations []domain.Conversation) {
	save(ctx, c, keyProjectPrefix+project, conversations)
}

// LoadProjectConversations returns one project's cached conversation list if
// fresh.
func (c *Coordinator) LoadProjectConversations(ctx context.Context, project string, maxAge time.Duration) ([]domain.Conversation, bool) {
	return load[[]domain.Conversation](ctx, c, keyProjectPrefix+project, maxAge)
}

// ClearProjectConversations drops one project's partition. Idempotent.
func (c *Coordinator) ClearProjectConversations(ctx context.Context, project string) {
	c.clear(ctx, keyProjectPrefix+project)
}

// ClearAllProjectConversations drops every per-project partition. Used when a
// conversation's prior project membership is unknown to the caller.
func (c *Coordinator) ClearAllProjectConversations(ctx context.Context) {
	if err := c.store.DeletePrefix(ctx, keyProjectPrefix); err != nil {
		c.logger.Warn("clear project conversation caches failed", "error", err)
	}
}

// ClearSidebar drops the two partitions populated by one sidebar fetch.
func (c *Coordinator) ClearSidebar(ctx context.Context) {
	c.ClearProjects(ctx)
	c.ClearRecent(ctx)
}

// ClearAll drops every partition unconditionally (the manual "refresh cache"
// action).
func (c *Coordinator) ClearAll(ctx context.Context) {
	c.ClearAgents(ctx)
	c.ClearSidebar(ctx)
	c.ClearAllProjectConversations(ctx)
}
