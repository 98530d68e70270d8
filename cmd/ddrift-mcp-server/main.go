// ddrift-mcp-server exposes drift state to MCP clients over stdio.
// Logs go to stderr; stdout carries only the protocol stream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/docdrift/docdrift/internal/config"
	"github.com/docdrift/docdrift/internal/mcp"
	"github.com/docdrift/docdrift/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ddrift-mcp-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout belongs to the protocol stream; all logging goes to stderr
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfgFile := os.Getenv("DOCDRIFT_CONFIG")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	var store storage.Store
	switch cfg.Storage.Type {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	default:
		store, err = storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	}
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	return mcp.NewServer(store).Run(ctx)
}
