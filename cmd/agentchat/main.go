// agentchat - terminal client for an agent chat server.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ashureev/agentchat/internal/cli"
)

func main() {
	level := slog.LevelWarn
	if os.Getenv("AGENTCHAT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cli.Execute()
}
