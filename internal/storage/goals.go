package storage

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

const goalColumns = "id, user_id, name, target_amount, monthly_saving, saved_amount, target_date, priority, created_at"

type goalRow struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	TargetAmount  decimal.Decimal
	MonthlySaving decimal.Decimal
	SavedAmount   decimal.NullDecimal
	TargetDate    dbDate
	Priority      string
	CreatedAt     dbTime
}

func (g *goalRow) targets() []any {
	return []any{&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.MonthlySaving, &g.SavedAmount, &g.TargetDate, &g.Priority, &g.CreatedAt}
}

func (g goalRow) goal() core.Goal {
	out := core.Goal{
		ID:            g.ID,
		UserID:        g.UserID,
		Name:          g.Name,
		TargetAmount:  g.TargetAmount,
		MonthlySaving: g.MonthlySaving,
		TargetDate:    g.TargetDate.ptr(),
		Priority:      core.Priority(g.Priority),
		CreatedAt:     g.CreatedAt.Time,
	}
	if g.SavedAmount.Valid {
		saved := g.SavedAmount.Decimal
		out.ManualSaved = &saved
	}
	return out
}

func optionalAmount(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(core.AmountPlaces)
}

func (r *Repository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = r.stamp(g.CreatedAt)

	_, err := r.exec(ctx, r.db,
		"INSERT INTO goals ("+goalColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		g.ID, g.UserID, g.Name,
		g.TargetAmount.StringFixed(core.AmountPlaces), g.MonthlySaving.StringFixed(core.AmountPlaces),
		optionalAmount(g.ManualSaved), r.optionalDateArg(g.TargetDate),
		string(g.Priority), r.timeArg(g.CreatedAt),
	)
	if err != nil {
		return core.Goal{}, core.Storage("create goal", err)
	}
	slog.InfoContext(ctx, "Goal created", "id", g.ID, "user_id", g.UserID, "target", g.TargetAmount.StringFixed(core.AmountPlaces))
	return g, nil
}

func (r *Repository) GetGoal(ctx context.Context, userID, id uuid.UUID) (core.Goal, error) {
	var row goalRow
	err := r.queryRow(ctx, r.db,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?", id, userID,
	).Scan(row.targets()...)
	if err != nil {
		return core.Goal{}, core.Storage("get goal", notFoundOr(err))
	}
	return row.goal(), nil
}

// UpdateGoal never rewrites created_at; it anchors the monthly accrual.
func (r *Repository) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	res, err := r.exec(ctx, r.db,
		`UPDATE goals SET name = ?, target_amount = ?, monthly_saving = ?, saved_amount = ?,
		target_date = ?, priority = ? WHERE id = ? AND user_id = ?`,
		g.Name, g.TargetAmount.StringFixed(core.AmountPlaces), g.MonthlySaving.StringFixed(core.AmountPlaces),
		optionalAmount(g.ManualSaved), r.optionalDateArg(g.TargetDate), string(g.Priority), g.ID, g.UserID,
	)
	if err == nil {
		err = affectedOrNotFound(res)
	}
	if err != nil {
		return core.Goal{}, core.Storage("update goal", err)
	}
	return r.GetGoal(ctx, g.UserID, g.ID)
}

func (r *Repository) ListGoals(ctx context.Context, userID uuid.UUID) ([]core.Goal, error) {
	rows, err := r.query(ctx, r.db,
		"SELECT "+goalColumns+" FROM goals WHERE user_id = ? ORDER BY created_at ASC, id ASC", userID)
	if err != nil {
		return nil, core.Storage("list goals", err)
	}
	defer rows.Close()

	out := make([]core.Goal, 0)
	for rows.Next() {
		var row goalRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, core.Storage("list goals", err)
		}
		out = append(out, row.goal())
	}
	if err := rows.Err(); err != nil {
		return nil, core.Storage("list goals", err)
	}
	return out, nil
}

// DeleteGoalCascade removes the goal's links before the goal, in one
// transaction. Incomes are never touched.
func (r *Repository) DeleteGoalCascade(ctx context.Context, userID, goalID uuid.UUID) error {
	var removed int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := r.exec(ctx, tx,
			"DELETE FROM linked_transactions WHERE goal_id = ? AND user_id = ?", goalID, userID)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()

		res, err = r.exec(ctx, tx, "DELETE FROM goals WHERE id = ? AND user_id = ?", goalID, userID)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res)
	})
	if err != nil {
		return core.Storage("delete goal", err)
	}
	slog.InfoContext(ctx, "Goal deleted", "id", goalID, "user_id", userID, "links_removed", removed)
	return nil
}

const budgetColumns = "id, user_id, name, category, amount, start_date, end_date, created_at"

type budgetRow struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Category  string
	Amount    decimal.Decimal
	StartDate dbDate
	EndDate   dbDate
	CreatedAt dbTime
}

func (b *budgetRow) targets() []any {
	return []any{&b.ID, &b.UserID, &b.Name, &b.Category, &b.Amount, &b.StartDate, &b.EndDate, &b.CreatedAt}
}

func (b budgetRow) budget() core.Budget {
	return core.Budget{
		ID:        b.ID,
		UserID:    b.UserID,
		Name:      b.Name,
		Category:  core.Category(b.Category),
		Amount:    b.Amount,
		StartDate: b.StartDate.Date,
		EndDate:   b.EndDate.Date,
		CreatedAt: b.CreatedAt.Time,
	}
}

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = r.stamp(b.CreatedAt)

	_, err := r.exec(ctx, r.db,
		"INSERT INTO budgets ("+budgetColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.UserID, b.Name, string(b.Category), b.Amount.StringFixed(core.AmountPlaces),
		r.dateArg(b.StartDate), r.dateArg(b.EndDate), r.timeArg(b.CreatedAt),
	)
	if err != nil {
		return core.Budget{}, core.Storage("create budget", err)
	}
	return b, nil
}

func (r *Repository) GetBudget(ctx context.Context, userID, id uuid.UUID) (core.Budget, error) {
	var row budgetRow
	err := r.queryRow(ctx, r.db,
		"SELECT "+budgetColumns+" FROM budgets WHERE id = ? AND user_id = ?", id, userID,
	).Scan(row.targets()...)
	if err != nil {
		return core.Budget{}, core.Storage("get budget", notFoundOr(err))
	}
	return row.budget(), nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	res, err := r.exec(ctx, r.db,
		`UPDATE budgets SET name = ?, category = ?, amount = ?, start_date = ?, end_date = ?
		WHERE id = ? AND user_id = ?`,
		b.Name, string(b.Category), b.Amount.StringFixed(core.AmountPlaces),
		r.dateArg(b.StartDate), r.dateArg(b.EndDate), b.ID, b.UserID,
	)
	if err == nil {
		err = affectedOrNotFound(res)
	}
	if err != nil {
		return core.Budget{}, core.Storage("update budget", err)
	}
	return r.GetBudget(ctx, b.UserID, b.ID)
}

func (r *Repository) DeleteBudget(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.exec(ctx, r.db, "DELETE FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	if err == nil {
		err = affectedOrNotFound(res)
	}
	return core.Storage("delete budget", err)
}

func (r *Repository) ListBudgets(ctx context.Context, userID uuid.UUID) ([]core.Budget, error) {
	rows, err := r.query(ctx, r.db,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? ORDER BY created_at ASC, id ASC", userID)
	if err != nil {
		return nil, core.Storage("list budgets", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		var row budgetRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, core.Storage("list budgets", err)
		}
		out = append(out, row.budget())
	}
	if err := rows.Err(); err != nil {
		return nil, core.Storage("list budgets", err)
	}
	return out, nil
}
