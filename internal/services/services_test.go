package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/amqp"
	"pennywise/internal/core"
	"pennywise/internal/ledger"
	"pennywise/internal/ledger/ledgertest"
	"pennywise/internal/ledger/memory"
	"pennywise/internal/progress"
	"pennywise/internal/reconcile"
)

var testNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// flakyStore fails ListGoals with a storage error a fixed number of times.
type flakyStore struct {
	ledger.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) ListGoals(ctx context.Context, userID uuid.UUID) ([]core.Goal, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return nil, core.Storage("list goals", errors.New("connection reset"))
	}
	return s.Store.ListGoals(ctx, userID)
}

type env struct {
	store     *memory.Store
	finance   *FinanceService
	dashboard *DashboardService
	publisher *recordingPublisher
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	cfg := DefaultDashboardConfig()
	cfg.RetryBackoff = time.Millisecond
	dash := NewDashboardService(store, cfg).WithClock(func() time.Time { return testNow })
	guard := reconcile.NewGuard(store, progress.DefaultOptions())
	return env{
		store:     store,
		finance:   NewFinanceService(store, guard, pub, dash.Invalidate, nil),
		dashboard: dash,
		publisher: pub,
	}
}

func TestFinanceService_WritesPublishEvents(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	exp, err := e.finance.CreateExpense(ctx, user, ledgertest.Expense(ledgertest.Bob, "Lunch", "12.50", core.NewDate(2025, 3, 2)))
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	if exp.UserID != user {
		t.Errorf("expense owner = %v, want the caller", exp.UserID)
	}

	exp.Amount = decimal.NewFromInt(15)
	if _, err := e.finance.UpdateExpense(ctx, user, exp.ID, exp); err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if err := e.finance.DeleteExpense(ctx, user, exp.ID); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}

	want := []amqp.EventKind{amqp.ExpenseCreated, amqp.ExpenseUpdated, amqp.ExpenseDeleted}
	got := e.publisher.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFinanceService_FailedWritePublishesNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.finance.CreateExpense(ctx, ledgertest.Alice, ledgertest.Expense(ledgertest.Alice, "", "10", core.NewDate(2025, 3, 2)))
	if !core.IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if err := e.finance.DeleteBudget(ctx, ledgertest.Alice, uuid.New()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("DeleteBudget() error = %v, want ErrNotFound", err)
	}
	if n := len(e.publisher.kinds()); n != 0 {
		t.Errorf("published %d events for failed writes", n)
	}
}

func TestFinanceService_PublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.publisher.err = amqp.ErrCircuitOpen

	inc, err := e.finance.CreateIncome(ctx, ledgertest.Alice, ledgertest.Income(ledgertest.Alice, "Salary", "1000", core.NewDate(2025, 3, 1)))
	if err != nil {
		t.Fatalf("CreateIncome() error = %v", err)
	}
	if _, err := e.store.GetIncome(ctx, ledgertest.Alice, inc.ID); err != nil {
		t.Errorf("income not stored: %v", err)
	}
}

func TestFinanceService_GoalLinks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	goal, err := e.finance.CreateGoal(ctx, user, core.Goal{
		Name:         "Car",
		TargetAmount: decimal.NewFromInt(5000),
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if goal.Priority != core.PriorityMedium {
		t.Errorf("default priority = %q", goal.Priority)
	}

	inc, err := e.finance.CreateIncome(ctx, user, ledgertest.Income(user, "Bonus", "300", core.NewDate(2025, 2, 1)))
	if err != nil {
		t.Fatalf("CreateIncome() error = %v", err)
	}

	res, err := e.finance.LinkIncomes(ctx, user, goal.ID, []uuid.UUID{inc.ID, inc.ID})
	if err != nil {
		t.Fatalf("LinkIncomes() error = %v", err)
	}
	if res.Requested != 1 || res.Linked != 1 {
		t.Errorf("LinkIncomes() = %+v", res)
	}

	// Relinking is a no-op and publishes nothing.
	before := len(e.publisher.kinds())
	if _, err := e.finance.LinkIncomes(ctx, user, goal.ID, []uuid.UUID{inc.ID}); err != nil {
		t.Fatalf("relink error = %v", err)
	}
	if after := len(e.publisher.kinds()); after != before {
		t.Errorf("relink published %d events", after-before)
	}

	if err := e.finance.DeleteGoal(ctx, user, goal.ID); err != nil {
		t.Fatalf("DeleteGoal() error = %v", err)
	}
	links, err := e.store.ListLinks(ctx, user)
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	if len(links) != 0 {
		t.Errorf("links left after goal delete: %d", len(links))
	}
}

func TestFinanceService_Import(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	expenses := []core.Expense{ledgertest.Expense(user, "Rent", "800", core.NewDate(2025, 3, 1))}
	incomes := []core.Income{
		ledgertest.Income(user, "Salary", "2000", core.NewDate(2025, 3, 1)),
		ledgertest.Income(user, "Refund", "20", core.NewDate(2025, 3, 3)),
	}

	res, err := e.finance.Import(ctx, user, expenses, incomes)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Expenses != 1 || res.Incomes != 2 {
		t.Errorf("Import() = %+v", res)
	}
	if kinds := e.publisher.kinds(); len(kinds) != 1 || kinds[0] != amqp.LedgerImported {
		t.Errorf("events = %v, want one %s", kinds, amqp.LedgerImported)
	}

	bad := []core.Income{ledgertest.Income(user, "Gift", "50", core.NewDate(2025, 3, 4)), {Title: "Broken"}}
	if _, err := e.finance.Import(ctx, user, nil, bad); !core.IsValidation(err) {
		t.Fatalf("Import() error = %v, want validation error", err)
	}
	all, _ := e.store.ListIncomes(ctx, user, core.DateRange{})
	if len(all) != 2 {
		t.Errorf("invalid batch wrote records: %d incomes", len(all))
	}
}

// brokenImportStore loses its connection on every batch import.
type brokenImportStore struct {
	ledger.Store
}

func (brokenImportStore) ImportEntries(context.Context, uuid.UUID, []core.Expense, []core.Income) (ledger.ImportResult, error) {
	return ledger.ImportResult{}, core.Storage("import entries", errors.New("connection reset"))
}

func TestFinanceService_ImportStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	finance := NewFinanceService(brokenImportStore{Store: store}, reconcile.NewGuard(store, progress.DefaultOptions()), pub, nil, nil)
	user := ledgertest.Alice

	expenses := []core.Expense{
		ledgertest.Expense(user, "Groceries", "45.50", core.NewDate(2025, 3, 2)),
		ledgertest.Expense(user, "Taxi", "12", core.NewDate(2025, 3, 3)),
	}
	res, err := finance.Import(ctx, user, expenses, nil)
	if !errors.Is(err, core.ErrStorageFailure) {
		t.Fatalf("Import() error = %v, want storage failure", err)
	}
	if res != (ImportResult{}) {
		t.Errorf("Import() = %+v, want nothing reported as written", res)
	}
	if kinds := pub.kinds(); len(kinds) != 0 {
		t.Errorf("events = %v, want none after a failed import", kinds)
	}
	if all, _ := store.ListExpenses(ctx, user, core.DateRange{}); len(all) != 0 {
		t.Errorf("failed import left %d expenses", len(all))
	}
}

func TestFinanceService_ImportRetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	batch := func() []core.Expense {
		exp := ledgertest.Expense(user, "Groceries", "45.50", core.NewDate(2025, 3, 2))
		exp.Note = "imported:t1"
		return []core.Expense{exp}
	}
	if res, err := e.finance.Import(ctx, user, batch(), nil); err != nil || res.Expenses != 1 {
		t.Fatalf("first Import() = %+v, %v", res, err)
	}
	res, err := e.finance.Import(ctx, user, batch(), nil)
	if err != nil {
		t.Fatalf("retry Import() error = %v", err)
	}
	if res.Expenses != 0 || res.Duplicates != 1 {
		t.Errorf("retry Import() = %+v, want one duplicate", res)
	}
	if kinds := e.publisher.kinds(); len(kinds) != 1 {
		t.Errorf("events = %v, want only the first import published", kinds)
	}
}

func TestDashboardService_Dashboard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	goal, err := e.store.CreateGoal(ctx, ledgertest.Goal(user, "Emergency"))
	if err != nil {
		t.Fatal(err)
	}
	jan, _ := e.store.CreateIncome(ctx, ledgertest.Income(user, "Salary", "150", core.NewDate(2025, 1, 25)))
	_, _ = e.store.CreateIncome(ctx, ledgertest.Income(user, "Bonus", "50", core.NewDate(2025, 2, 25)))
	_, _ = e.store.CreateExpense(ctx, ledgertest.Expense(user, "Groceries", "150", core.NewDate(2025, 1, 15)))
	_, _ = e.store.CreateExpense(ctx, ledgertest.Expense(user, "Dinner", "50", core.NewDate(2025, 2, 1)))
	budget, err := e.store.CreateBudget(ctx, core.Budget{
		UserID:    user,
		Name:      "Food",
		Category:  core.CategoryFood,
		Amount:    decimal.NewFromInt(200),
		StartDate: core.NewDate(2025, 1, 1),
		EndDate:   core.NewDate(2025, 1, 31),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.LinkIncomes(ctx, user, goal.ID, []uuid.UUID{jan.ID}); err != nil {
		t.Fatal(err)
	}

	d, err := e.dashboard.Dashboard(ctx, user, DashboardQuery{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if !d.Totals.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", d.Totals.Balance)
	}
	if len(d.Goals) != 1 || !d.Goals[0].SavedAmount.Equal(decimal.NewFromInt(450)) {
		t.Errorf("goals = %+v, want saved 450", d.Goals)
	}
	if len(d.Budgets) != 1 || !d.Budgets[0].SpentAmount.Equal(decimal.NewFromInt(150)) ||
		d.Budgets[0].Status != core.BudgetOnTrack {
		t.Errorf("budgets = %+v", d.Budgets)
	}
	if len(d.RecentActivity) != 5 {
		t.Errorf("recent activity = %d items, want 5", len(d.RecentActivity))
	}

	d, err = e.dashboard.Dashboard(ctx, user, DashboardQuery{RecentLimit: 2, EmergencyMonths: 6})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.RecentActivity) != 2 || d.EmergencyFund.Months != 6 {
		t.Errorf("overrides ignored: recent=%d months=%d", len(d.RecentActivity), d.EmergencyFund.Months)
	}

	u, err := e.dashboard.BudgetUtilization(ctx, user, budget.ID, core.MatchCategoryAndTitle)
	if err != nil {
		t.Fatalf("BudgetUtilization() error = %v", err)
	}
	if u.MatchedCount != 0 {
		t.Errorf("title mode matched %d expenses, want 0", u.MatchedCount)
	}
	if _, err := e.dashboard.BudgetUtilization(ctx, ledgertest.Bob, budget.ID, ""); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign budget error = %v, want ErrNotFound", err)
	}
}

func TestDashboardService_CacheInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	d, err := e.dashboard.Dashboard(ctx, user, DashboardQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Totals.TotalIncome.IsZero() {
		t.Fatalf("income = %s on empty ledger", d.Totals.TotalIncome)
	}

	// A direct store write bypasses invalidation, so the cached view stays.
	_, _ = e.store.CreateIncome(ctx, ledgertest.Income(user, "Side job", "40", core.NewDate(2025, 3, 1)))
	d, _ = e.dashboard.Dashboard(ctx, user, DashboardQuery{})
	if !d.Totals.TotalIncome.IsZero() {
		t.Errorf("cache miss on second read")
	}

	if _, err := e.finance.CreateIncome(ctx, user, ledgertest.Income(user, "Salary", "60", core.NewDate(2025, 3, 2))); err != nil {
		t.Fatal(err)
	}
	d, _ = e.dashboard.Dashboard(ctx, user, DashboardQuery{})
	if !d.Totals.TotalIncome.Equal(decimal.NewFromInt(100)) {
		t.Errorf("income after write = %s, want 100", d.Totals.TotalIncome)
	}
}

func TestDashboardService_RetriesStorageFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{"recovers", 2, 3, false, 3},
		{"gives up", 5, 3, true, 3},
		{"single attempt", 1, 1, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{Store: memory.New(), failures: tt.failures}
			cfg := DefaultDashboardConfig()
			cfg.ReadAttempts = tt.attempts
			cfg.RetryBackoff = time.Millisecond
			svc := NewDashboardService(store, cfg)

			_, err := svc.Records(ctx, ledgertest.Alice)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Records() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, core.ErrStorageFailure) {
				t.Errorf("error = %v, want storage failure", err)
			}
			if store.calls != tt.wantCalls {
				t.Errorf("ListGoals calls = %d, want %d", store.calls, tt.wantCalls)
			}
		})
	}
}

func TestDashboardService_Snapshots(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := ledgertest.Alice

	if _, err := e.dashboard.Snapshot(ctx, user); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Snapshot() before refresh error = %v, want ErrNotFound", err)
	}

	_, _ = e.store.CreateExpense(ctx, ledgertest.Expense(user, "Lunch", "10", core.NewDate(2025, 3, 30)))
	if _, err := e.dashboard.RefreshSnapshot(ctx, user); err != nil {
		t.Fatalf("RefreshSnapshot() error = %v", err)
	}

	snap, err := e.dashboard.Snapshot(ctx, user)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	var d core.Dashboard
	if err := json.Unmarshal(snap.Payload, &d); err != nil {
		t.Fatalf("payload is not a dashboard: %v", err)
	}
	if !d.Totals.TotalExpenses.Equal(decimal.NewFromInt(10)) || !d.ComputedAt.Equal(testNow) {
		t.Errorf("snapshot = %+v", d)
	}
}
