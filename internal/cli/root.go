// Package cli implements the agentchat command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ashureev/agentchat/internal/cache"
	"github.com/ashureev/agentchat/internal/chat"
	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/creds"
	"github.com/ashureev/agentchat/internal/kv"
	"github.com/ashureev/agentchat/internal/rpc"
	"github.com/ashureev/agentchat/internal/session"
	"github.com/ashureev/agentchat/internal/stream"
)

var outputFormat string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agentchat",
	Short: "Chat with remote agents from the terminal",
	Long: `agentchat is a terminal client for an agent chat server.

It keeps a local session (login once, then every command is authenticated),
caches sidebar listings on disk, and streams assistant replies token by token.

Quick start:
  agentchat login --user you@example.com
  agentchat agents
  agentchat chat new general-assistant
  agentchat chat send CHAT-0001 "hello there"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, or yaml")
}

// app bundles the wired client stack behind one handle. Built per command
// invocation; Close releases the local state store.
type app struct {
	cfg     *config.Config
	store   kv.Store
	session *session.Manager
	rpc     *rpc.Client
	stream  *stream.Client
	service *chat.Service
	logger  *slog.Logger
}

// newApp loads configuration and wires the full client stack.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	var store kv.Store
	if cfg.RedisAddr != "" {
		store, err = kv.NewStore(kv.StoreTypeRedis,
			kv.WithRedisClient(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})))
	} else {
		store, err = kv.NewStore(kv.StoreTypeSQLite, kv.WithSQLitePath(cfg.DBPath))
	}
	if err != nil {
		return nil, fmt.Errorf("open local state store: %w", err)
	}

	credStore := creds.NewStore(store, cfg.ServerBaseURL, logger)
	sm := session.NewManager(session.Config{
		BaseURL:        cfg.ServerBaseURL,
		AllowedOrigins: cfg.Origins(),
		CSRFHeader:     cfg.CSRFHeader,
		LoginPath:      cfg.LoginPath,
		Logger:         logger,
	}, credStore)

	rpcClient := rpc.NewClient(sm, cfg.MethodPrefix, logger)
	streamClient := stream.NewClient(sm, cfg.MethodPrefix+".send_message_streaming", logger)
	coordinator := cache.NewCoordinator(store, cfg.CacheMaxAge, logger)

	return &app{
		cfg:     cfg,
		store:   store,
		session: sm,
		rpc:     rpcClient,
		stream:  streamClient,
		service: chat.NewService(rpcClient, streamClient, coordinator, logger),
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close local state store failed", "error", err)
	}
}
