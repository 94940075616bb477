// mockserver - local stand-in for the remote agent chat endpoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashureev/agentchat/internal/devserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	port := os.Getenv("MOCKSERVER_PORT")
	if port == "" {
		port = "8080"
	}
	var origins []string
	if v := os.Getenv("MOCKSERVER_ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	} else {
		origins = []string{"*"}
	}

	srv := devserver.New(devserver.Config{
		Username:       os.Getenv("MOCKSERVER_USERNAME"),
		Password:       os.Getenv("MOCKSERVER_PASSWORD"),
		AllowedOrigins: origins,
		Logger:         logger,
	})

	// No WriteTimeout: the streaming endpoint holds connections open.
	httpSrv := &http.Server{
		Addr:        ":" + port,
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Mock server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
