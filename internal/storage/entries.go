package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
	"pennywise/internal/ledger"
)

const entryColumns = "id, user_id, title, amount, category, date, note, created_at"

// entryRow is the shared column set of expenses and incomes.
type entryRow struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Amount    decimal.Decimal
	Category  string
	Date      dbDate
	Note      string
	CreatedAt dbTime
}

func (e *entryRow) targets() []any {
	return []any{&e.ID, &e.UserID, &e.Title, &e.Amount, &e.Category, &e.Date, &e.Note, &e.CreatedAt}
}

func (e entryRow) expense() core.Expense {
	return core.Expense{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Amount:    e.Amount,
		Category:  core.Category(e.Category),
		Date:      e.Date.Date,
		Note:      e.Note,
		CreatedAt: e.CreatedAt.Time,
	}
}

func (e entryRow) income() core.Income {
	return core.Income{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Amount:    e.Amount,
		Category:  core.Category(e.Category),
		Date:      e.Date.Date,
		Note:      e.Note,
		CreatedAt: e.CreatedAt.Time,
	}
}

// rangeQuery builds the list query for one entry table.
func (r *Repository) rangeQuery(table string, userID uuid.UUID, dr core.DateRange) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT " + entryColumns + " FROM " + table + " WHERE user_id = ?")
	args := []any{userID}
	if !dr.From.IsZero() {
		b.WriteString(" AND date >= ?")
		args = append(args, r.dateArg(dr.From))
	}
	if !dr.To.IsZero() {
		b.WriteString(" AND date <= ?")
		args = append(args, r.dateArg(dr.To))
	}
	b.WriteString(" ORDER BY date DESC, created_at DESC, id ASC")
	return b.String(), args
}

func (r *Repository) listEntries(ctx context.Context, table string, userID uuid.UUID, dr core.DateRange) ([]entryRow, error) {
	query, args := r.rangeQuery(table, userID, dr)
	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entryRow, 0)
	for rows.Next() {
		var row entryRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) getEntry(ctx context.Context, table string, userID, id uuid.UUID) (entryRow, error) {
	var row entryRow
	err := r.queryRow(ctx, r.db,
		"SELECT "+entryColumns+" FROM "+table+" WHERE id = ? AND user_id = ?", id, userID,
	).Scan(row.targets()...)
	return row, notFoundOr(err)
}

func (r *Repository) insertEntry(ctx context.Context, q queryer, table string, row entryRow) error {
	_, err := r.exec(ctx, q,
		"INSERT INTO "+table+" ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		row.ID, row.UserID, row.Title, row.Amount.StringFixed(core.AmountPlaces), row.Category,
		r.dateArg(row.Date.Date), row.Note, r.timeArg(row.CreatedAt.Time),
	)
	return err
}

// updateEntry leaves id, user_id and created_at untouched.
func (r *Repository) updateEntry(ctx context.Context, table string, row entryRow) error {
	res, err := r.exec(ctx, r.db,
		"UPDATE "+table+" SET title = ?, amount = ?, category = ?, date = ?, note = ? WHERE id = ? AND user_id = ?",
		row.Title, row.Amount.StringFixed(core.AmountPlaces), row.Category,
		r.dateArg(row.Date.Date), row.Note, row.ID, row.UserID,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.stamp(e.CreatedAt)

	if err := r.insertEntry(ctx, r.db, "expenses", expenseRow(e)); err != nil {
		return core.Expense{}, core.Storage("create expense", err)
	}
	slog.InfoContext(ctx, "Expense created", "id", e.ID, "user_id", e.UserID, "amount", e.Amount.StringFixed(core.AmountPlaces))
	return e, nil
}

func (r *Repository) GetExpense(ctx context.Context, userID, id uuid.UUID) (core.Expense, error) {
	row, err := r.getEntry(ctx, "expenses", userID, id)
	if err != nil {
		return core.Expense{}, core.Storage("get expense", err)
	}
	return row.expense(), nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := r.updateEntry(ctx, "expenses", expenseRow(e)); err != nil {
		return core.Expense{}, core.Storage("update expense", err)
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.exec(ctx, r.db, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	if err == nil {
		err = affectedOrNotFound(res)
	}
	return core.Storage("delete expense", err)
}

func (r *Repository) ListExpenses(ctx context.Context, userID uuid.UUID, dr core.DateRange) ([]core.Expense, error) {
	rows, err := r.listEntries(ctx, "expenses", userID, dr)
	if err != nil {
		return nil, core.Storage("list expenses", err)
	}
	out := make([]core.Expense, len(rows))
	for i, row := range rows {
		out[i] = row.expense()
	}
	return out, nil
}

func (r *Repository) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	if err := i.Validate(); err != nil {
		return core.Income{}, err
	}
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	i.CreatedAt = r.stamp(i.CreatedAt)

	if err := r.insertEntry(ctx, r.db, "incomes", incomeRow(i)); err != nil {
		return core.Income{}, core.Storage("create income", err)
	}
	slog.InfoContext(ctx, "Income created", "id", i.ID, "user_id", i.UserID, "amount", i.Amount.StringFixed(core.AmountPlaces))
	return i, nil
}

func (r *Repository) GetIncome(ctx context.Context, userID, id uuid.UUID) (core.Income, error) {
	row, err := r.getEntry(ctx, "incomes", userID, id)
	if err != nil {
		return core.Income{}, core.Storage("get income", err)
	}
	return row.income(), nil
}

func (r *Repository) UpdateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	if err := i.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := r.updateEntry(ctx, "incomes", incomeRow(i)); err != nil {
		return core.Income{}, core.Storage("update income", err)
	}
	return r.GetIncome(ctx, i.UserID, i.ID)
}

// DeleteIncome removes the income and its links in one transaction.
func (r *Repository) DeleteIncome(ctx context.Context, userID, id uuid.UUID) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.exec(ctx, tx,
			"DELETE FROM linked_transactions WHERE income_id = ? AND user_id = ?", id, userID,
		); err != nil {
			return err
		}
		res, err := r.exec(ctx, tx, "DELETE FROM incomes WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res)
	})
	return core.Storage("delete income", err)
}

func (r *Repository) ListIncomes(ctx context.Context, userID uuid.UUID, dr core.DateRange) ([]core.Income, error) {
	rows, err := r.listEntries(ctx, "incomes", userID, dr)
	if err != nil {
		return nil, core.Storage("list incomes", err)
	}
	out := make([]core.Income, len(rows))
	for i, row := range rows {
		out[i] = row.income()
	}
	return out, nil
}

type importRow struct {
	table string
	row   entryRow
}

// ImportEntries writes the batch in one transaction. Notes already stored for
// the user are read inside the same transaction.
func (r *Repository) ImportEntries(ctx context.Context, userID uuid.UUID, expenses []core.Expense, incomes []core.Income) (ledger.ImportResult, error) {
	rows := make([]importRow, 0, len(expenses)+len(incomes))
	for _, e := range expenses {
		if err := e.Validate(); err != nil {
			return ledger.ImportResult{}, err
		}
		e.UserID = userID
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CreatedAt = r.stamp(e.CreatedAt)
		rows = append(rows, importRow{"expenses", expenseRow(e)})
	}
	for _, i := range incomes {
		if err := i.Validate(); err != nil {
			return ledger.ImportResult{}, err
		}
		i.UserID = userID
		if i.ID == uuid.Nil {
			i.ID = uuid.New()
		}
		i.CreatedAt = r.stamp(i.CreatedAt)
		rows = append(rows, importRow{"incomes", incomeRow(i)})
	}

	var res ledger.ImportResult
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		notes, err := r.entryNotes(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, item := range rows {
			if note := item.row.Note; note != "" {
				if _, dup := notes[note]; dup {
					res.Duplicates++
					continue
				}
				notes[note] = struct{}{}
			}
			if err := r.insertEntry(ctx, tx, item.table, item.row); err != nil {
				return err
			}
			if item.table == "expenses" {
				res.Expenses++
			} else {
				res.Incomes++
			}
		}
		return nil
	})
	if err != nil {
		return ledger.ImportResult{}, core.Storage("import entries", err)
	}
	slog.InfoContext(ctx, "Entries imported",
		"user_id", userID,
		"expenses", res.Expenses,
		"incomes", res.Incomes,
		"duplicates", res.Duplicates)
	return res, nil
}

// entryNotes returns every non-empty note on the user's expenses and incomes.
func (r *Repository) entryNotes(ctx context.Context, q queryer, userID uuid.UUID) (map[string]struct{}, error) {
	rows, err := r.query(ctx, q,
		"SELECT note FROM expenses WHERE user_id = ? AND note <> '' "+
			"UNION SELECT note FROM incomes WHERE user_id = ? AND note <> ''",
		userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make(map[string]struct{})
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, err
		}
		notes[note] = struct{}{}
	}
	return notes, rows.Err()
}

func expenseRow(e core.Expense) entryRow {
	return entryRow{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Amount:    e.Amount,
		Category:  string(e.Category),
		Date:      dbDate{Date: e.Date, Valid: true},
		Note:      e.Note,
		CreatedAt: dbTime{Time: e.CreatedAt},
	}
}

func incomeRow(i core.Income) entryRow {
	return entryRow{
		ID:        i.ID,
		UserID:    i.UserID,
		Title:     i.Title,
		Amount:    i.Amount,
		Category:  string(i.Category),
		Date:      dbDate{Date: i.Date, Valid: true},
		Note:      i.Note,
		CreatedAt: dbTime{Time: i.CreatedAt},
	}
}
