// Package services orchestrates the ledger writes and the dashboard reads on
// top of the store ports.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/amqp"
	"pennywise/internal/core"
	"pennywise/internal/ledger"
	"pennywise/internal/log"
	"pennywise/internal/reconcile"
)

// Publisher sends ledger events. *amqp.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, event amqp.LedgerEvent) error
}

// ImportResult counts the records written by one import.
type ImportResult = ledger.ImportResult

// FinanceService performs the user's writes. Each successful write drops the
// user's cached reads and publishes a ledger event; a failed publish is logged
// and never fails the write.
type FinanceService struct {
	store      ledger.Store
	guard      *reconcile.Guard
	publisher  Publisher
	invalidate func(uuid.UUID)
	logger     *log.StructuredLogger
}

// NewFinanceService wires the service. publisher and invalidate may be nil.
func NewFinanceService(store ledger.Store, guard *reconcile.Guard, publisher Publisher, invalidate func(uuid.UUID), logger *log.Logger) *FinanceService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &FinanceService{
		store:      store,
		guard:      guard,
		publisher:  publisher,
		invalidate: invalidate,
		logger:     log.NewStructuredLogger(logger),
	}
}

func (s *FinanceService) after(ctx context.Context, op string, kind amqp.EventKind, userID, entityID uuid.UUID, entity, amount string) {
	if s.invalidate != nil {
		s.invalidate(userID)
	}
	s.logger.LogLedgerWrite(ctx, op, entity, userID.String(), entityID.String(), amount)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewLedgerEvent(userID, kind, entityID)); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"user_id", userID, "kind", kind, "entity_id", entityID, "error", err)
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(core.AmountPlaces)
}

// Expenses

func (s *FinanceService) CreateExpense(ctx context.Context, userID uuid.UUID, e core.Expense) (core.Expense, error) {
	e.ID = uuid.Nil
	e.UserID = userID
	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.after(ctx, log.OpCreate, amqp.ExpenseCreated, userID, created.ID, "expense", money(created.Amount))
	return created, nil
}

func (s *FinanceService) GetExpense(ctx context.Context, userID, id uuid.UUID) (core.Expense, error) {
	return s.store.GetExpense(ctx, userID, id)
}

func (s *FinanceService) UpdateExpense(ctx context.Context, userID, id uuid.UUID, e core.Expense) (core.Expense, error) {
	e.ID = id
	e.UserID = userID
	updated, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.after(ctx, log.OpUpdate, amqp.ExpenseUpdated, userID, id, "expense", money(updated.Amount))
	return updated, nil
}

func (s *FinanceService) DeleteExpense(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.after(ctx, log.OpDelete, amqp.ExpenseDeleted, userID, id, "expense", "")
	return nil
}

func (s *FinanceService) ListExpenses(ctx context.Context, userID uuid.UUID, r core.DateRange) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, userID, r)
}

// Incomes

func (s *FinanceService) CreateIncome(ctx context.Context, userID uuid.UUID, i core.Income) (core.Income, error) {
	i.ID = uuid.Nil
	i.UserID = userID
	created, err := s.store.CreateIncome(ctx, i)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	s.after(ctx, log.OpCreate, amqp.IncomeCreated, userID, created.ID, "income", money(created.Amount))
	return created, nil
}

func (s *FinanceService) GetIncome(ctx context.Context, userID, id uuid.UUID) (core.Income, error) {
	return s.store.GetIncome(ctx, userID, id)
}

func (s *FinanceService) UpdateIncome(ctx context.Context, userID, id uuid.UUID, i core.Income) (core.Income, error) {
	i.ID = id
	i.UserID = userID
	updated, err := s.store.UpdateIncome(ctx, i)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.after(ctx, log.OpUpdate, amqp.IncomeUpdated, userID, id, "income", money(updated.Amount))
	return updated, nil
}

// DeleteIncome removes the income together with its goal links.
func (s *FinanceService) DeleteIncome(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteIncome(ctx, userID, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	s.after(ctx, log.OpDelete, amqp.IncomeDeleted, userID, id, "income", "")
	return nil
}

func (s *FinanceService) ListIncomes(ctx context.Context, userID uuid.UUID, r core.DateRange) ([]core.Income, error) {
	return s.store.ListIncomes(ctx, userID, r)
}

// Goals

func (s *FinanceService) CreateGoal(ctx context.Context, userID uuid.UUID, g core.Goal) (core.Goal, error) {
	g.ID = uuid.Nil
	g.UserID = userID
	if g.Priority == "" {
		g.Priority = core.PriorityMedium
	}
	created, err := s.store.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	s.after(ctx, log.OpCreate, amqp.GoalCreated, userID, created.ID, "goal", money(created.TargetAmount))
	return created, nil
}

func (s *FinanceService) GetGoal(ctx context.Context, userID, id uuid.UUID) (core.Goal, error) {
	return s.store.GetGoal(ctx, userID, id)
}

func (s *FinanceService) UpdateGoal(ctx context.Context, userID, id uuid.UUID, g core.Goal) (core.Goal, error) {
	g.ID = id
	g.UserID = userID
	if g.Priority == "" {
		g.Priority = core.PriorityMedium
	}
	updated, err := s.store.UpdateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	s.after(ctx, log.OpUpdate, amqp.GoalUpdated, userID, id, "goal", money(updated.TargetAmount))
	return updated, nil
}

func (s *FinanceService) ListGoals(ctx context.Context, userID uuid.UUID) ([]core.Goal, error) {
	return s.store.ListGoals(ctx, userID)
}

// DeleteGoal removes the goal and all of its links.
func (s *FinanceService) DeleteGoal(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.guard.DeleteGoalCascade(ctx, userID, id); err != nil {
		return err
	}
	s.after(ctx, log.OpDelete, amqp.GoalDeleted, userID, id, "goal", "")
	return nil
}

func (s *FinanceService) LinkIncomes(ctx context.Context, userID, goalID uuid.UUID, incomeIDs []uuid.UUID) (reconcile.LinkResult, error) {
	res, err := s.guard.LinkIncomes(ctx, userID, goalID, incomeIDs)
	if err != nil {
		return reconcile.LinkResult{}, err
	}
	if res.Linked > 0 {
		s.after(ctx, log.OpLink, amqp.IncomesLinked, userID, goalID, "goal", "")
	}
	return res, nil
}

func (s *FinanceService) UnlinkIncome(ctx context.Context, userID, goalID, incomeID uuid.UUID) error {
	if err := s.guard.UnlinkIncome(ctx, userID, goalID, incomeID); err != nil {
		return err
	}
	s.after(ctx, log.OpUnlink, amqp.IncomeUnlinked, userID, goalID, "goal", "")
	return nil
}

// Budgets

func (s *FinanceService) CreateBudget(ctx context.Context, userID uuid.UUID, b core.Budget) (core.Budget, error) {
	b.ID = uuid.Nil
	b.UserID = userID
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.after(ctx, log.OpCreate, amqp.BudgetCreated, userID, created.ID, "budget", money(created.Amount))
	return created, nil
}

func (s *FinanceService) GetBudget(ctx context.Context, userID, id uuid.UUID) (core.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

func (s *FinanceService) UpdateBudget(ctx context.Context, userID, id uuid.UUID, b core.Budget) (core.Budget, error) {
	b.ID = id
	b.UserID = userID
	updated, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	s.after(ctx, log.OpUpdate, amqp.BudgetUpdated, userID, id, "budget", money(updated.Amount))
	return updated, nil
}

func (s *FinanceService) DeleteBudget(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.after(ctx, log.OpDelete, amqp.BudgetDeleted, userID, id, "budget", "")
	return nil
}

func (s *FinanceService) ListBudgets(ctx context.Context, userID uuid.UUID) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}

// Import writes already-converted aggregator records. Every record is
// validated before the store is touched, and the store writes the batch
// atomically, so a failed import writes nothing. Records already imported are
// skipped. One event is published for the whole batch.
func (s *FinanceService) Import(ctx context.Context, userID uuid.UUID, expenses []core.Expense, incomes []core.Income) (ImportResult, error) {
	for i := range expenses {
		expenses[i].ID = uuid.Nil
		expenses[i].UserID = userID
		if err := expenses[i].Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("expense %d: %w", i, err)
		}
	}
	for i := range incomes {
		incomes[i].ID = uuid.Nil
		incomes[i].UserID = userID
		if err := incomes[i].Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("income %d: %w", i, err)
		}
	}

	res, err := s.store.ImportEntries(ctx, userID, expenses, incomes)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}
	if res.Expenses+res.Incomes > 0 {
		s.after(ctx, log.OpImport, amqp.LedgerImported, userID, uuid.Nil, "import", "")
	}
	return res, nil
}
