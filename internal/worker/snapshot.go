// Package worker keeps the precomputed dashboard snapshots fresh. Ledger
// events refresh one user; a cron schedule refreshes everyone.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"pennywise/internal/amqp"
	"pennywise/internal/core"
)

// Refresher recomputes and stores one user's snapshot.
type Refresher interface {
	RefreshSnapshot(ctx context.Context, userID uuid.UUID) (core.Dashboard, error)
}

// UserLister enumerates the users owning records.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Config struct {
	// Schedule is a standard cron spec or descriptor such as "@every 30m".
	// Empty disables the periodic refresh.
	Schedule string
	// Concurrency bounds parallel refreshes during a full pass.
	Concurrency int
}

// SnapshotWorker refreshes dashboard snapshots on events and on a schedule.
type SnapshotWorker struct {
	refresher Refresher
	users     UserLister
	config    Config

	mu      sync.Mutex
	running bool
	cron    *cron.Cron

	refreshed atomic.Int64
	failed    atomic.Int64
}

func NewSnapshotWorker(refresher Refresher, users UserLister, config Config) *SnapshotWorker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &SnapshotWorker{
		refresher: refresher,
		users:     users,
		config:    config,
	}
}

// HandleLedgerEvent refreshes the snapshot of the user whose records changed.
// The returned error makes the consumer requeue the delivery.
func (w *SnapshotWorker) HandleLedgerEvent(ctx context.Context, event amqp.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event",
		"user_id", event.UserID, "kind", event.Kind, "entity_id", event.EntityID)

	if err := w.refresh(ctx, event.UserID); err != nil {
		return fmt.Errorf("refresh after %s: %w", event.Kind, err)
	}
	return nil
}

func (w *SnapshotWorker) refresh(ctx context.Context, userID uuid.UUID) error {
	if _, err := w.refresher.RefreshSnapshot(ctx, userID); err != nil {
		w.failed.Add(1)
		return err
	}
	w.refreshed.Add(1)
	return nil
}

// RefreshAll refreshes every user with bounded concurrency. One user's
// failure does not stop the others; all failures are joined in the result.
func (w *SnapshotWorker) RefreshAll(ctx context.Context) (int, error) {
	ids, err := w.users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		ok   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if err := w.refresh(gctx, id); err != nil {
				slog.WarnContext(gctx, "Snapshot refresh failed", "user_id", id, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			ok++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Snapshot pass finished", "users", len(ids), "refreshed", ok, "failed", len(errs))
	return ok, errors.Join(errs...)
}

// Start schedules the periodic full refresh. It returns an error if the
// worker is already running or the schedule does not parse.
func (w *SnapshotWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("snapshot worker is already running")
	}

	c := cron.New()
	if w.config.Schedule != "" {
		if _, err := c.AddFunc(w.config.Schedule, func() {
			if _, err := w.RefreshAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled snapshot pass had failures", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule %q: %w", w.config.Schedule, err)
		}
	}
	c.Start()

	w.cron = c
	w.running = true
	slog.InfoContext(ctx, "Snapshot worker started",
		"schedule", w.config.Schedule, "concurrency", w.config.Concurrency)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish, or for ctx.
func (w *SnapshotWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	c := w.cron
	w.running = false
	w.cron = nil
	w.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Snapshot worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Snapshot worker stop timed out")
		return ctx.Err()
	}
}

func (w *SnapshotWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats reports refresh counts since start.
func (w *SnapshotWorker) Stats() (refreshed, failed int64) {
	return w.refreshed.Load(), w.failed.Load()
}
