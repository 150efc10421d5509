// Package cli holds the start-up steps shared by cmd/pennywise and
// cmd/pennywise-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pennywise/internal/backend"
	"pennywise/internal/config"
	"pennywise/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the configured level and installs
// it as the slog default.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and exits on the first invalid
// start-up. Every problem is reported at once.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend builds the configured store and publisher or exits.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout; done closes when it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
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

// Fatal logs and exits. It keeps main functions flat.
func Fatal(logger *log.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
