// Command spese-server is the remote store: expense records over REST,
// persisted in SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"spesesync/internal/cli"
	"spesesync/internal/config"
	"spesesync/internal/log"
	"spesesync/internal/server"
	"spesesync/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger, logFile := cli.SetupLogger(cfg, log.ComponentHTTP, nil)
	defer logFile.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		logFile.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("initialize SQLite repository at %s: %w", cfg.SQLiteDBPath, err)
	}
	defer repo.Close()

	srv := server.New(server.Config{
		Addr:               cfg.Addr(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, repo)

	ctx, done := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting spese-server", "addr", cfg.Addr(), "db_path", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
	return nil
}
