// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Defaults for the remote contract. The CSRF header and login path follow the
// Frappe conventions the server speaks.
const (
	DefaultCSRFHeader   = "X-Frappe-CSRF-Token"
	DefaultLoginPath    = "/api/method/login"
	DefaultMethodPrefix = "agent_hub.api"
	DefaultCacheMaxAge  = time.Hour
)

// Config holds all client configuration.
type Config struct {
	ServerBaseURL  string
	AllowedOrigins []string
	CSRFHeader     string
	LoginPath      string
	MethodPrefix   string
	DBPath         string
	CacheMaxAge    time.Duration
	RedisAddr      string // optional; switches local state to the redis driver
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerBaseURL:  strings.TrimRight(getEnv("AGENTCHAT_SERVER_URL", ""), "/"),
		AllowedOrigins: splitList(getEnv("AGENTCHAT_ALLOWED_ORIGINS", "")),
		CSRFHeader:     getEnv("AGENTCHAT_CSRF_HEADER", DefaultCSRFHeader),
		LoginPath:      getEnv("AGENTCHAT_LOGIN_PATH", DefaultLoginPath),
		MethodPrefix:   getEnv("AGENTCHAT_METHOD_PREFIX", DefaultMethodPrefix),
		DBPath:         getEnv("AGENTCHAT_DB_PATH", defaultDBPath()),
		CacheMaxAge:    getEnvDuration("AGENTCHAT_CACHE_MAX_AGE", DefaultCacheMaxAge),
		RedisAddr:      getEnv("AGENTCHAT_REDIS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// Endpoint security (HTTPS, origin allow-list) is enforced by the session
// manager at login time, not here.
func (c *Config) Validate() error {
	if c.ServerBaseURL == "" {
		return fmt.Errorf("AGENTCHAT_SERVER_URL cannot be empty")
	}
	if c.CSRFHeader == "" {
		return fmt.Errorf("AGENTCHAT_CSRF_HEADER cannot be empty")
	}
	if c.LoginPath == "" {
		return fmt.Errorf("AGENTCHAT_LOGIN_PATH cannot be empty")
	}
	if c.MethodPrefix == "" {
		return fmt.Errorf("AGENTCHAT_METHOD_PREFIX cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("AGENTCHAT_DB_PATH cannot be empty")
	}
	if c.CacheMaxAge <= 0 {
		return fmt.Errorf("AGENTCHAT_CACHE_MAX_AGE must be > 0")
	}
	return nil
}

// Origins returns the allow-listed origins, defaulting to the origin of the
// configured server URL when none are set explicitly.
func (c *Config) Origins() []string {
	if len(c.AllowedOrigins) > 0 {
		return c.AllowedOrigins
	}
	if c.ServerBaseURL != "" {
		return []string{c.ServerBaseURL}
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./agentchat.db"
	}
	return filepath.Join(home, ".agentchat", "state.db")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
