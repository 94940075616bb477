package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewStore(StoreTypeSQLite,
		WithSQLitePath(filepath.Join(t.TempDir(), "state.db")))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })

	memStore, err := NewStore(StoreTypeMemory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = memStore.Close() })

	return map[string]Store{
		"memory": memStore,
		"sqlite": sqliteStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "alpha", []byte("one")); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := store.Get(ctx, "alpha")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(got) != "one" {
				t.Errorf("get = %q, want %q", got, "one")
			}

			if err := store.Set(ctx, "alpha", []byte("two")); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err = store.Get(ctx, "alpha")
			if err != nil {
				t.Fatalf("get after overwrite: %v", err)
			}
			if string(got) != "two" {
				t.Errorf("get after overwrite = %q, want %q", got, "two")
			}
		})
	}
}

func TestStoreGetAbsent(t *testing.T) {
	ctx := context.Background()

	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Get(ctx, "missing")
			if err != nil {
				t.Fatalf("get absent key: %v", err)
			}
			if got != nil {
				t.Errorf("get absent key = %q, want nil", got)
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "gone", []byte("x")); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := store.Delete(ctx, "gone"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			got, err := store.Get(ctx, "gone")
			if err != nil || got != nil {
				t.Errorf("get after delete = %q, %v; want nil, nil", got, err)
			}

			// Deleting again must not fail.
			if err := store.Delete(ctx, "gone"); err != nil {
				t.Errorf("second delete: %v", err)
			}
		})
	}
}

func TestStoreDeletePrefix(t *testing.T) {
	ctx := context.Background()

	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			entries := map[string]string{
				"cache:projectConversations:alpha": "a",
				"cache:projectConversations:beta":  "b",
				"cache:projects:list":              "keep",
			}
			for k, v := range entries {
				if err := store.Set(ctx, k, []byte(v)); err != nil {
					t.Fatalf("set %s: %v", k, err)
				}
			}

			if err := store.DeletePrefix(ctx, "cache:projectConversations:"); err != nil {
				t.Fatalf("delete prefix: %v", err)
			}

			for _, k := range []string{"cache:projectConversations:alpha", "cache:projectConversations:beta"} {
				if got, _ := store.Get(ctx, k); got != nil {
					t.Errorf("key %s survived prefix delete", k)
				}
			}
			if got, _ := store.Get(ctx, "cache:projects:list"); string(got) != "keep" {
				t.Errorf("unrelated key lost, got %q", got)
			}
		})
	}
}

func TestNewStoreInvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		storeType StoreType
		opts      []StoreOption
		wantErr   error
	}{
		{"sqlite without path", StoreTypeSQLite, nil, ErrInvalidConfig},
		{"redis without client", StoreTypeRedis, nil, ErrInvalidConfig},
		{"unknown type", StoreType("bolt"), nil, ErrInvalidStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.storeType, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewStore error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
