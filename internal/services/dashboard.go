package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pennywise/internal/cache"
	"pennywise/internal/core"
	"pennywise/internal/ledger"
	"pennywise/internal/progress"
)

// DashboardConfig tunes the read path.
type DashboardConfig struct {
	Options progress.Options
	// ReadAttempts bounds how many times a failed batch read is tried.
	ReadAttempts int
	// RetryBackoff is multiplied by the attempt number between tries.
	RetryBackoff time.Duration
	CacheSize    int
	CacheTTL     time.Duration
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Options:      progress.DefaultOptions(),
		ReadAttempts: 3,
		RetryBackoff: 100 * time.Millisecond,
		CacheSize:    500,
		CacheTTL:     5 * time.Minute,
	}
}

// DashboardQuery overrides the configured options for one request. Zero fields
// keep the configured value.
type DashboardQuery struct {
	EmergencyMonths int
	RecentLimit     int
	MatchMode       core.BudgetMatchMode
}

// DashboardService fetches a user's records in one concurrent batch, caches
// them, and derives dashboards and snapshots from them.
type DashboardService struct {
	store  ledger.Store
	cache  *cache.LRUCache[core.UserRecords]
	config DashboardConfig
	now    func() time.Time
}

func NewDashboardService(store ledger.Store, config DashboardConfig) *DashboardService {
	if config.ReadAttempts < 1 {
		config.ReadAttempts = 1
	}
	return &DashboardService{
		store:  store,
		cache:  cache.NewLRUCache[core.UserRecords](config.CacheSize, config.CacheTTL),
		config: config,
		now:    time.Now,
	}
}

// WithClock replaces the clock used as "now" by the aggregation.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// Cache exposes the records cache so it can be registered for cleanup.
func (s *DashboardService) Cache() *cache.LRUCache[core.UserRecords] {
	return s.cache
}

func recordsKey(userID uuid.UUID) string {
	return "user:" + userID.String() + ":"
}

// Invalidate drops every cached entry of the user.
func (s *DashboardService) Invalidate(userID uuid.UUID) {
	s.cache.DeletePrefix(recordsKey(userID))
}

// Records returns the user's full record set, from cache when fresh.
func (s *DashboardService) Records(ctx context.Context, userID uuid.UUID) (core.UserRecords, error) {
	key := recordsKey(userID) + "records"
	if rec, ok := s.cache.Get(key); ok {
		return rec, nil
	}

	var (
		rec core.UserRecords
		err error
	)
	for attempt := 1; attempt <= s.config.ReadAttempts; attempt++ {
		rec, err = s.fetch(ctx, userID)
		if err == nil || !errors.Is(err, core.ErrStorageFailure) || attempt == s.config.ReadAttempts {
			break
		}

		wait := s.config.RetryBackoff * time.Duration(attempt)
		slog.WarnContext(ctx, "Batch read failed, retrying",
			"user_id", userID, "attempt", attempt, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return core.UserRecords{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return core.UserRecords{}, err
	}

	s.cache.Set(key, rec)
	return rec, nil
}

// fetch runs the five per-user queries concurrently. The first failure
// cancels the others.
func (s *DashboardService) fetch(ctx context.Context, userID uuid.UUID) (core.UserRecords, error) {
	rec := core.UserRecords{UserID: userID}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		rec.Expenses, err = s.store.ListExpenses(gctx, userID, core.DateRange{})
		return wrapRead("list expenses", err)
	})
	g.Go(func() error {
		var err error
		rec.Incomes, err = s.store.ListIncomes(gctx, userID, core.DateRange{})
		return wrapRead("list incomes", err)
	})
	g.Go(func() error {
		var err error
		rec.Goals, err = s.store.ListGoals(gctx, userID)
		return wrapRead("list goals", err)
	})
	g.Go(func() error {
		var err error
		rec.Budgets, err = s.store.ListBudgets(gctx, userID)
		return wrapRead("list budgets", err)
	})
	g.Go(func() error {
		var err error
		rec.Links, err = s.store.ListLinks(gctx, userID)
		return wrapRead("list links", err)
	})

	if err := g.Wait(); err != nil {
		return core.UserRecords{}, err
	}
	return rec, nil
}

func wrapRead(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *DashboardService) options(q DashboardQuery) progress.Options {
	opts := s.config.Options
	if q.EmergencyMonths > 0 {
		opts.EmergencyMonths = q.EmergencyMonths
	}
	if q.RecentLimit > 0 {
		opts.RecentLimit = q.RecentLimit
	}
	if q.MatchMode.IsValid() {
		opts.MatchMode = q.MatchMode
	}
	return opts
}

// Dashboard aggregates the user's records at the current instant.
func (s *DashboardService) Dashboard(ctx context.Context, userID uuid.UUID, q DashboardQuery) (core.Dashboard, error) {
	rec, err := s.Records(ctx, userID)
	if err != nil {
		return core.Dashboard{}, err
	}
	return progress.BuildDashboard(rec, s.now(), s.options(q)), nil
}

// BudgetUtilization reports one budget against the user's expenses.
func (s *DashboardService) BudgetUtilization(ctx context.Context, userID, budgetID uuid.UUID, mode core.BudgetMatchMode) (core.BudgetUtilization, error) {
	b, err := s.store.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return core.BudgetUtilization{}, fmt.Errorf("load budget: %w", err)
	}

	expenses, err := s.store.ListExpenses(ctx, userID, core.DateRange{From: b.StartDate, To: b.EndDate})
	if err != nil {
		return core.BudgetUtilization{}, fmt.Errorf("list expenses: %w", err)
	}

	return progress.ComputeBudgetUtilization(b, expenses, s.options(DashboardQuery{MatchMode: mode}).MatchMode), nil
}

// RefreshSnapshot recomputes the user's dashboard with the configured options
// and stores it.
func (s *DashboardService) RefreshSnapshot(ctx context.Context, userID uuid.UUID) (core.Dashboard, error) {
	s.Invalidate(userID)

	d, err := s.Dashboard(ctx, userID, DashboardQuery{})
	if err != nil {
		return core.Dashboard{}, err
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("marshal dashboard: %w", err)
	}
	if err := s.store.SaveSnapshot(ctx, ledger.Snapshot{
		UserID:     userID,
		Payload:    payload,
		ComputedAt: d.ComputedAt,
	}); err != nil {
		return core.Dashboard{}, fmt.Errorf("save snapshot: %w", err)
	}
	return d, nil
}

// Snapshot returns the last stored dashboard. core.ErrNotFound means none was
// computed yet.
func (s *DashboardService) Snapshot(ctx context.Context, userID uuid.UUID) (ledger.Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, userID)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}
