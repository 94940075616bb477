package kv

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType represents the type of key-value store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption is a functional option for configuring a store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	sqlitePath  string
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithSQLitePath sets the database file path for the SQLite store.
func WithSQLitePath(path string) StoreOption {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the expiry applied to Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// NewStore creates a Store of the given type.
// SQLite requires WithSQLitePath; Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(), nil

	case StoreTypeSQLite:
		if config.sqlitePath == "" {
			return nil, ErrInvalidConfig
		}
		return newSQLiteStore(config.sqlitePath)

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return newRedisStore(config.redisClient, config.redisTTL), nil

	default:
		return nil, ErrInvalidStoreType
	}
}
