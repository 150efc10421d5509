// Package ledger defines the store ports the services depend on. Every method
// is scoped by user: implementations must never return or touch a record whose
// user_id differs from the one passed in.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, userID, id uuid.UUID) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id uuid.UUID) error
		// ListExpenses returns expenses newest first; zero range bounds are open.
		ListExpenses(ctx context.Context, userID uuid.UUID, r core.DateRange) ([]core.Expense, error)
	}

	IncomeStore interface {
		CreateIncome(ctx context.Context, i core.Income) (core.Income, error)
		GetIncome(ctx context.Context, userID, id uuid.UUID) (core.Income, error)
		UpdateIncome(ctx context.Context, i core.Income) (core.Income, error)
		// DeleteIncome also removes every link referencing the income.
		DeleteIncome(ctx context.Context, userID, id uuid.UUID) error
		ListIncomes(ctx context.Context, userID uuid.UUID, r core.DateRange) ([]core.Income, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		GetGoal(ctx context.Context, userID, id uuid.UUID) (core.Goal, error)
		UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		ListGoals(ctx context.Context, userID uuid.UUID) ([]core.Goal, error)
		// DeleteGoalCascade removes the goal and all its links atomically.
		DeleteGoalCascade(ctx context.Context, userID, goalID uuid.UUID) error
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, userID, id uuid.UUID) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, userID, id uuid.UUID) error
		ListBudgets(ctx context.Context, userID uuid.UUID) ([]core.Budget, error)
	}

	// LinkStore is the link registry between goals and incomes.
	LinkStore interface {
		ListLinks(ctx context.Context, userID uuid.UUID) ([]core.LinkedTransaction, error)
		ListGoalLinks(ctx context.Context, userID, goalID uuid.UUID) ([]core.LinkedTransaction, error)
		// LinkIncomes inserts the missing (goal, income) pairs in one
		// transaction and returns how many were new. It fails with
		// core.ErrNotFound, writing nothing, when the goal or any income is
		// not the user's.
		LinkIncomes(ctx context.Context, userID, goalID uuid.UUID, incomeIDs []uuid.UUID) (int, error)
		UnlinkIncome(ctx context.Context, userID, goalID, incomeID uuid.UUID) error
	}

	// ImportStore writes one converted bank import.
	ImportStore interface {
		// ImportEntries stores every record in one transaction, or none of
		// them on error. A record whose non-empty Note already appears on one
		// of the user's expenses or incomes, or earlier in the batch, is
		// skipped and counted as a duplicate, so retrying a batch is safe.
		ImportEntries(ctx context.Context, userID uuid.UUID, expenses []core.Expense, incomes []core.Income) (ImportResult, error)
	}

	// SnapshotStore keeps the last precomputed dashboard per user.
	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, s Snapshot) error
		GetSnapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error)
		// ListUserIDs returns every user owning at least one record.
		ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
	}

	// Store is the full persistence surface of one backend.
	Store interface {
		ExpenseStore
		IncomeStore
		GoalStore
		BudgetStore
		LinkStore
		ImportStore
		SnapshotStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// ImportResult counts the records one import wrote and the ones it skipped as
// already stored.
type ImportResult struct {
	Expenses   int `json:"expenses"`
	Incomes    int `json:"incomes"`
	Duplicates int `json:"duplicates"`
}

// Snapshot is a serialized dashboard for one user.
type Snapshot struct {
	UserID     uuid.UUID
	Payload    []byte
	ComputedAt time.Time
}
