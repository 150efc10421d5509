package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
	"pennywise/internal/ledger/ledgertest"
	"pennywise/internal/ledger/memory"
	"pennywise/internal/progress"
)

type fixture struct {
	store *memory.Store
	guard *Guard
	goal  core.Goal
	jan   core.Income
	feb   core.Income
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	goal, err := store.CreateGoal(ctx, ledgertest.Goal(ledgertest.Alice, "Emergency"))
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	jan, err := store.CreateIncome(ctx, ledgertest.Income(ledgertest.Alice, "Salary", "150", core.NewDate(2025, 1, 25)))
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	feb, err := store.CreateIncome(ctx, ledgertest.Income(ledgertest.Alice, "Bonus", "50", core.NewDate(2025, 2, 25)))
	if err != nil {
		t.Fatalf("create income: %v", err)
	}

	return fixture{
		store: store,
		guard: NewGuard(store, progress.DefaultOptions()),
		goal:  goal,
		jan:   jan,
		feb:   feb,
	}
}

func TestLinkIncomes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		ids     func(f fixture) []uuid.UUID
		want    LinkResult
		wantErr error
	}{
		{
			name: "new pairs",
			ids:  func(f fixture) []uuid.UUID { return []uuid.UUID{f.jan.ID, f.feb.ID} },
			want: LinkResult{Requested: 2, Linked: 2},
		},
		{
			name: "duplicates collapsed",
			ids:  func(f fixture) []uuid.UUID { return []uuid.UUID{f.jan.ID, f.jan.ID} },
			want: LinkResult{Requested: 1, Linked: 1},
		},
		{
			name:    "empty selection",
			ids:     func(f fixture) []uuid.UUID { return nil },
			wantErr: core.ErrEmptySelection,
		},
		{
			name:    "unknown income",
			ids:     func(f fixture) []uuid.UUID { return []uuid.UUID{f.jan.ID, uuid.New()} },
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			got, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, tt.ids(f))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				links, _ := f.store.ListLinks(ctx, ledgertest.Alice)
				if len(links) != 0 {
					t.Fatalf("failed request wrote %d links", len(links))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLinkIncomesTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID}); err != nil {
		t.Fatalf("first link: %v", err)
	}
	res, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID, f.feb.ID})
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if res != (LinkResult{Requested: 2, Linked: 1, AlreadyLinked: 1}) {
		t.Errorf("result = %+v", res)
	}
	links, _ := f.store.ListGoalLinks(ctx, ledgertest.Alice, f.goal.ID)
	if len(links) != 2 {
		t.Errorf("links = %d, want 2", len(links))
	}
}

func TestListLinkableIncomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	all, err := f.guard.ListLinkableIncomes(ctx, ledgertest.Alice, f.goal.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("linkable = %d, want 2", len(all))
	}

	if _, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	rest, err := f.guard.ListLinkableIncomes(ctx, ledgertest.Alice, f.goal.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, inc := range rest {
		if inc.ID == f.jan.ID {
			t.Fatal("linked income listed as linkable")
		}
	}
	if len(rest) != 1 {
		t.Errorf("linkable = %d, want 1", len(rest))
	}

	// A second goal still sees the income linked elsewhere.
	other, err := f.store.CreateGoal(ctx, ledgertest.Goal(ledgertest.Alice, "Car"))
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	forOther, _ := f.guard.ListLinkableIncomes(ctx, ledgertest.Alice, other.ID)
	if len(forOther) != 2 {
		t.Errorf("linkable for other goal = %d, want 2", len(forOther))
	}

	if _, err := f.guard.ListLinkableIncomes(ctx, ledgertest.Bob, f.goal.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign goal: error = %v, want ErrNotFound", err)
	}
}

func TestListLinkableIncomesWithoutIncomes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	goal, err := store.CreateGoal(ctx, ledgertest.Goal(ledgertest.Bob, "Bike"))
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	got, err := NewGuard(store, progress.Options{}).ListLinkableIncomes(ctx, ledgertest.Bob, goal.ID)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v; want empty list", got, err)
	}
}

func TestDeleteGoalCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID, f.feb.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := f.guard.DeleteGoalCascade(ctx, ledgertest.Alice, f.goal.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	links, _ := f.store.ListLinks(ctx, ledgertest.Alice)
	if len(links) != 0 {
		t.Errorf("links after cascade = %d", len(links))
	}
	incomes, _ := f.store.ListIncomes(ctx, ledgertest.Alice, core.DateRange{})
	if len(incomes) != 2 {
		t.Errorf("incomes after cascade = %d, want 2", len(incomes))
	}
	if err := f.guard.DeleteGoalCascade(ctx, ledgertest.Alice, f.goal.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: error = %v, want ErrNotFound", err)
	}
}

func TestUnlinkIncome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := f.guard.UnlinkIncome(ctx, ledgertest.Alice, f.goal.ID, f.jan.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := f.guard.UnlinkIncome(ctx, ledgertest.Alice, f.goal.ID, f.jan.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second unlink: error = %v, want ErrNotFound", err)
	}
}

func TestGoalProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	report, err := f.guard.GoalProgress(ctx, ledgertest.Alice, f.goal.ID, now)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !report.Progress.SavedAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("saved = %s, want 300", report.Progress.SavedAmount)
	}

	if _, err := f.guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID, f.feb.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	report, err = f.guard.GoalProgress(ctx, ledgertest.Alice, f.goal.ID, now)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !report.Progress.SavedAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("saved = %s, want 500", report.Progress.SavedAmount)
	}
	if !report.Progress.ProgressRatio.Equal(decimal.RequireFromString("0.4166")) {
		t.Errorf("ratio = %s, want 0.4166", report.Progress.ProgressRatio)
	}
	if !report.Progress.Remaining.Equal(decimal.NewFromInt(700)) {
		t.Errorf("remaining = %s, want 700", report.Progress.Remaining)
	}
	if report.Progress.Status != core.GoalInProgress {
		t.Errorf("status = %s", report.Progress.Status)
	}
	if len(report.LinkedIncomes) != 2 {
		t.Errorf("linked incomes = %d, want 2", len(report.LinkedIncomes))
	}

	if _, err := f.guard.GoalProgress(ctx, ledgertest.Bob, f.goal.ID, now); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign goal: error = %v, want ErrNotFound", err)
	}
}

// failingLinks fails every link write the way a dropped connection would.
type failingLinks struct {
	*memory.Store
}

func (failingLinks) LinkIncomes(context.Context, uuid.UUID, uuid.UUID, []uuid.UUID) (int, error) {
	return 0, core.Storage("link incomes", errors.New("connection reset by peer"))
}

func TestLinkIncomesStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guard := NewGuard(failingLinks{f.store}, progress.DefaultOptions())

	_, err := guard.LinkIncomes(ctx, ledgertest.Alice, f.goal.ID, []uuid.UUID{f.jan.ID})
	if !errors.Is(err, core.ErrStorageFailure) {
		t.Fatalf("error = %v, want storage failure", err)
	}
	links, _ := f.store.ListLinks(ctx, ledgertest.Alice)
	if len(links) != 0 {
		t.Errorf("links = %d after failure", len(links))
	}
}
