// Package kv provides the key-value persistence drivers backing the
// credential store and the cache partitions.
package kv

import (
	"context"
	"errors"
)

// Common errors for store construction.
var (
	ErrInvalidConfig    = errors.New("invalid store configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Store is a flat key-value store. Each value is replaced atomically as a
// whole entry; concurrent readers of the same key race benignly.
type Store interface {
	// Get retrieves the value for a key. Returns nil, nil when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, replacing any previous entry for the key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the entry for a key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases any resources held by the store.
	Close() error
}
