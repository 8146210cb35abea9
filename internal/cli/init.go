// Package cli holds the process bootstrap shared by cmd/spese,
// cmd/spese-agent and cmd/spese-server.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spesesync/internal/config"
	"spesesync/internal/log"
)

// SetupLogger installs the configured handler as the slog default and
// returns a logger for component. out replaces stdout when non-nil. The
// closer releases the log file, if any.
func SetupLogger(cfg *config.Config, component string, out io.Writer) (*log.Logger, io.Closer) {
	lc := cfg.LogConfig(component)
	lc.Output = out
	handler, closer := log.NewHandler(lc)
	lc.Handler = handler

	logger := log.New(lc)
	log.SetDefault(logger)
	return logger, closer
}

// LoadEnvFile loads .env files for local development. Missing files are
// ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. On the
// signal cleanup runs with a timeout-bound context before the returned
// context is cancelled; done closes once cleanup has returned.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown(logger, timeout, cleanup, sigChan)
}

func gracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context), sigChan <-chan os.Signal) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
