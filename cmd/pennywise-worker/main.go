package main

import (
	"context"
	"errors"
	"time"

	"pennywise/internal/cli"
	"pennywise/internal/config"
	"pennywise/internal/log"
	"pennywise/internal/services"
	"pennywise/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	cfg = cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" && cfg.SnapshotSchedule == "" {
		cli.Fatal(logger, "Nothing to do: set AMQP_URL or SNAPSHOT_SCHEDULE")
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.InitBackend(initCtx, logger, cfg)
	initCancel()

	dashCfg := services.DefaultDashboardConfig()
	dashCfg.Options = cfg.ProgressOptions()
	dashCfg.ReadAttempts = cfg.ReadRetryAttempts
	// Every refresh invalidates first, so the worker keeps no warm cache.
	dashCfg.CacheSize = 0
	dashboard := services.NewDashboardService(res.Store, dashCfg)

	snapshots := worker.NewSnapshotWorker(dashboard, res.Store, worker.Config{
		Schedule:    cfg.SnapshotSchedule,
		Concurrency: cfg.SnapshotConcurrency,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := snapshots.Stop(ctx); err != nil {
			logger.Error("Snapshot worker stop error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
		refreshed, failed := snapshots.Stats()
		logger.Info("Snapshot totals", "refreshed", refreshed, "failed", failed)
	})

	// Catch up on anything missed while the worker was down.
	if n, err := snapshots.RefreshAll(ctx); err != nil {
		logger.Warn("Startup refresh incomplete", "refreshed", n, "error", err)
	} else {
		logger.Info("Startup refresh complete", "refreshed", n)
	}

	if cfg.SnapshotSchedule != "" {
		if err := snapshots.Start(ctx); err != nil {
			cli.Fatal(logger, "Failed to start snapshot schedule", "error", err, "schedule", cfg.SnapshotSchedule)
		}
		logger.Info("Snapshot schedule started", "schedule", cfg.SnapshotSchedule)
	}

	if res.Publisher != nil {
		go func() {
			err := res.Publisher.Consume(ctx, snapshots.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", "error", err)
			}
		}()
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("No event broker configured; relying on the schedule")
	}

	logger.Info("Starting pennywise-worker", "backend", cfg.DataBackend)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
