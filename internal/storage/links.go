package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
	"pennywise/internal/ledger"
)

const linkColumns = "id, user_id, goal_id, income_id, created_at"

func (r *Repository) ListLinks(ctx context.Context, userID uuid.UUID) ([]core.LinkedTransaction, error) {
	links, err := r.listLinks(ctx,
		"SELECT "+linkColumns+" FROM linked_transactions WHERE user_id = ? ORDER BY created_at ASC, id ASC", userID)
	return links, core.Storage("list links", err)
}

func (r *Repository) ListGoalLinks(ctx context.Context, userID, goalID uuid.UUID) ([]core.LinkedTransaction, error) {
	links, err := r.listLinks(ctx,
		"SELECT "+linkColumns+" FROM linked_transactions WHERE user_id = ? AND goal_id = ? ORDER BY created_at ASC, id ASC",
		userID, goalID)
	return links, core.Storage("list goal links", err)
}

func (r *Repository) listLinks(ctx context.Context, query string, args ...any) ([]core.LinkedTransaction, error) {
	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.LinkedTransaction, 0)
	for rows.Next() {
		var (
			l       core.LinkedTransaction
			created dbTime
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.GoalID, &l.IncomeID, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = created.Time
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LinkIncomes checks ownership of the goal and every income, then inserts the
// missing pairs. Any failure rolls back the whole batch.
func (r *Repository) LinkIncomes(ctx context.Context, userID, goalID uuid.UUID, incomeIDs []uuid.UUID) (int, error) {
	if len(incomeIDs) == 0 {
		return 0, core.ErrEmptySelection
	}
	unique := dedupe(incomeIDs)

	created := 0
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := r.queryRow(ctx, tx,
			"SELECT 1 FROM goals WHERE id = ? AND user_id = ?", goalID, userID,
		).Scan(&one); err != nil {
			return notFoundOr(err)
		}

		args := make([]any, 0, len(unique)+1)
		args = append(args, userID)
		for _, id := range unique {
			args = append(args, id)
		}
		var owned int
		if err := r.queryRow(ctx, tx,
			"SELECT COUNT(*) FROM incomes WHERE user_id = ? AND id IN ("+placeholders(len(unique))+")", args...,
		).Scan(&owned); err != nil {
			return err
		}
		if owned != len(unique) {
			return core.ErrNotFound
		}

		now := r.timeArg(r.stamp(time.Time{}))
		for _, incomeID := range unique {
			res, err := r.exec(ctx, tx,
				`INSERT INTO linked_transactions (`+linkColumns+`) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (goal_id, income_id) DO NOTHING`,
				uuid.New(), userID, goalID, incomeID, now,
			)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, core.Storage("link incomes", err)
	}
	slog.InfoContext(ctx, "Incomes linked", "goal_id", goalID, "user_id", userID,
		"requested", len(incomeIDs), "linked", created)
	return created, nil
}

func (r *Repository) UnlinkIncome(ctx context.Context, userID, goalID, incomeID uuid.UUID) error {
	res, err := r.exec(ctx, r.db,
		"DELETE FROM linked_transactions WHERE user_id = ? AND goal_id = ? AND income_id = ?",
		userID, goalID, incomeID)
	if err == nil {
		err = affectedOrNotFound(res)
	}
	return core.Storage("unlink income", err)
}

func (r *Repository) SaveSnapshot(ctx context.Context, s ledger.Snapshot) error {
	_, err := r.exec(ctx, r.db,
		`INSERT INTO dashboard_snapshots (user_id, payload, computed_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET payload = excluded.payload, computed_at = excluded.computed_at`,
		s.UserID, string(s.Payload), r.timeArg(s.ComputedAt),
	)
	return core.Storage("save snapshot", err)
}

func (r *Repository) GetSnapshot(ctx context.Context, userID uuid.UUID) (ledger.Snapshot, error) {
	var (
		payload  string
		computed dbTime
	)
	err := r.queryRow(ctx, r.db,
		"SELECT payload, computed_at FROM dashboard_snapshots WHERE user_id = ?", userID,
	).Scan(&payload, &computed)
	if err != nil {
		return ledger.Snapshot{}, core.Storage("get snapshot", notFoundOr(err))
	}
	return ledger.Snapshot{UserID: userID, Payload: []byte(payload), ComputedAt: computed.Time}, nil
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.query(ctx, r.db, `
		SELECT user_id FROM expenses
		UNION SELECT user_id FROM incomes
		UNION SELECT user_id FROM goals
		UNION SELECT user_id FROM budgets
		ORDER BY 1`)
	if err != nil {
		return nil, core.Storage("list users", err)
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, core.Storage("list users", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Storage("list users", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
