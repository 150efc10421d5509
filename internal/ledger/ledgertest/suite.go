// Package ledgertest holds the behavior every ledger.Store must share. Backend
// packages call Run from their own tests.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
	"pennywise/internal/ledger"
)

var (
	Alice = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	Bob   = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) ledger.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("expense crud", func(t *testing.T) { testExpenseCRUD(t, newStore(t)) })
	t.Run("expense range filter", func(t *testing.T) { testExpenseRange(t, newStore(t)) })
	t.Run("user scoping", func(t *testing.T) { testUserScoping(t, newStore(t)) })
	t.Run("goal round trip", func(t *testing.T) { testGoalRoundTrip(t, newStore(t)) })
	t.Run("budget crud", func(t *testing.T) { testBudgetCRUD(t, newStore(t)) })
	t.Run("link idempotent", func(t *testing.T) { testLinkIdempotent(t, newStore(t)) })
	t.Run("link all or nothing", func(t *testing.T) { testLinkAllOrNothing(t, newStore(t)) })
	t.Run("link same income to two goals", func(t *testing.T) { testMultiGoalLink(t, newStore(t)) })
	t.Run("unlink", func(t *testing.T) { testUnlink(t, newStore(t)) })
	t.Run("delete goal cascade", func(t *testing.T) { testDeleteGoalCascade(t, newStore(t)) })
	t.Run("delete income removes links", func(t *testing.T) { testDeleteIncomeCascade(t, newStore(t)) })
	t.Run("import skips stored notes", func(t *testing.T) { testImportSkipsStored(t, newStore(t)) })
	t.Run("import all or nothing", func(t *testing.T) { testImportAllOrNothing(t, newStore(t)) })
	t.Run("snapshots", func(t *testing.T) { testSnapshots(t, newStore(t)) })
}

func Expense(user uuid.UUID, title string, amount string, date core.Date) core.Expense {
	return core.Expense{
		UserID:   user,
		Title:    title,
		Amount:   decimal.RequireFromString(amount),
		Category: core.CategoryFood,
		Date:     date,
	}
}

func Income(user uuid.UUID, title string, amount string, date core.Date) core.Income {
	return core.Income{
		UserID:   user,
		Title:    title,
		Amount:   decimal.RequireFromString(amount),
		Category: core.CategorySalary,
		Date:     date,
	}
}

func Goal(user uuid.UUID, name string) core.Goal {
	return core.Goal{
		UserID:        user,
		Name:          name,
		TargetAmount:  decimal.NewFromInt(1200),
		MonthlySaving: decimal.NewFromInt(100),
		Priority:      core.PriorityMedium,
		CreatedAt:     time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func mustCreateIncome(t *testing.T, s ledger.Store, i core.Income) core.Income {
	t.Helper()
	out, err := s.CreateIncome(context.Background(), i)
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	return out
}

func mustCreateGoal(t *testing.T, s ledger.Store, g core.Goal) core.Goal {
	t.Helper()
	out, err := s.CreateGoal(context.Background(), g)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return out
}

func testExpenseCRUD(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	created, err := s.CreateExpense(ctx, Expense(Alice, "Lunch", "12.50", core.NewDate(2025, 1, 5)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil || created.CreatedAt.IsZero() {
		t.Fatalf("create must assign id and created_at, got %+v", created)
	}

	got, err := s.GetExpense(ctx, Alice, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Lunch" || !got.Amount.Equal(decimal.RequireFromString("12.5")) || !got.Date.Equal(created.Date.Time) {
		t.Fatalf("get returned %+v", got)
	}

	got.Title = "Team lunch"
	got.Note = "split later"
	if _, err := s.UpdateExpense(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.GetExpense(ctx, Alice, created.ID)
	if again.Title != "Team lunch" || again.Note != "split later" {
		t.Fatalf("update not persisted: %+v", again)
	}

	if err := s.DeleteExpense(ctx, Alice, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetExpense(ctx, Alice, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteExpense(ctx, Alice, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func testExpenseRange(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	for _, d := range []int{1, 15, 31} {
		if _, err := s.CreateExpense(ctx, Expense(Alice, "x", "1", core.NewDate(2025, 1, d))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.CreateExpense(ctx, Expense(Alice, "x", "1", core.NewDate(2025, 2, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}

	jan, err := s.ListExpenses(ctx, Alice, core.DateRange{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 1, 31)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jan) != 3 {
		t.Fatalf("january expenses = %d, want 3", len(jan))
	}
	if jan[0].Date.Day() != 31 || jan[2].Date.Day() != 1 {
		t.Fatalf("expected newest first, got %s..%s", jan[0].Date, jan[2].Date)
	}

	all, _ := s.ListExpenses(ctx, Alice, core.DateRange{})
	if len(all) != 4 {
		t.Fatalf("all expenses = %d, want 4", len(all))
	}
}

func testUserScoping(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	exp, err := s.CreateExpense(ctx, Expense(Alice, "Private", "5", core.NewDate(2025, 1, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	goal := mustCreateGoal(t, s, Goal(Alice, "Car"))

	if _, err := s.GetExpense(ctx, Bob, exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign get should be ErrNotFound, got %v", err)
	}
	if err := s.DeleteExpense(ctx, Bob, exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign delete should be ErrNotFound, got %v", err)
	}
	if err := s.DeleteGoalCascade(ctx, Bob, goal.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign goal delete should be ErrNotFound, got %v", err)
	}
	hijack := exp
	hijack.UserID = Bob
	if _, err := s.UpdateExpense(ctx, hijack); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign update should be ErrNotFound, got %v", err)
	}

	list, _ := s.ListExpenses(ctx, Bob, core.DateRange{})
	if len(list) != 0 {
		t.Fatalf("bob sees %d expenses", len(list))
	}
	goals, _ := s.ListGoals(ctx, Bob)
	if len(goals) != 0 {
		t.Fatalf("bob sees %d goals", len(goals))
	}
}

func testGoalRoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	g := Goal(Alice, "House")
	target := core.NewDate(2027, 6, 30)
	manual := decimal.RequireFromString("150.25")
	g.TargetDate = &target
	g.ManualSaved = &manual

	created := mustCreateGoal(t, s, g)
	got, err := s.GetGoal(ctx, Alice, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TargetDate == nil || !got.TargetDate.Equal(target.Time) {
		t.Fatalf("target date = %v", got.TargetDate)
	}
	if got.ManualSaved == nil || !got.ManualSaved.Equal(manual) {
		t.Fatalf("manual saved = %v", got.ManualSaved)
	}
	if !got.CreatedAt.Equal(g.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, g.CreatedAt)
	}

	got.Name = "Bigger house"
	got.TargetDate = nil
	got.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.UpdateGoal(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.GetGoal(ctx, Alice, created.ID)
	if again.Name != "Bigger house" || again.TargetDate != nil {
		t.Fatalf("update not persisted: %+v", again)
	}
	if !again.CreatedAt.Equal(g.CreatedAt) {
		t.Fatalf("created_at must be immutable, got %v", again.CreatedAt)
	}
}

func testBudgetCRUD(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	b, err := s.CreateBudget(ctx, core.Budget{
		UserID:    Alice,
		Name:      "Food",
		Category:  core.CategoryFood,
		Amount:    decimal.NewFromInt(200),
		StartDate: core.NewDate(2025, 1, 1),
		EndDate:   core.NewDate(2025, 1, 31),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := s.ListBudgets(ctx, Alice)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if !list[0].EndDate.Equal(core.NewDate(2025, 1, 31).Time) {
		t.Fatalf("end date = %s", list[0].EndDate)
	}
	b.Amount = decimal.NewFromInt(250)
	if _, err := s.UpdateBudget(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.DeleteBudget(ctx, Alice, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetBudget(ctx, Alice, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testLinkIdempotent(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	goal := mustCreateGoal(t, s, Goal(Alice, "Trip"))
	inc := mustCreateIncome(t, s, Income(Alice, "Bonus", "200", core.NewDate(2025, 2, 1)))

	n, err := s.LinkIncomes(ctx, Alice, goal.ID, []uuid.UUID{inc.ID})
	if err != nil || n != 1 {
		t.Fatalf("first link = %d, %v", n, err)
	}
	n, err = s.LinkIncomes(ctx, Alice, goal.ID, []uuid.UUID{inc.ID, inc.ID})
	if err != nil || n != 0 {
		t.Fatalf("repeat link = %d, %v", n, err)
	}
	links, _ := s.ListGoalLinks(ctx, Alice, goal.ID)
	if len(links) != 1 {
		t.Fatalf("links = %d, want exactly 1", len(links))
	}
	if links[0].IncomeID != inc.ID || links[0].UserID != Alice {
		t.Fatalf("link = %+v", links[0])
	}
}

func testLinkAllOrNothing(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	goal := mustCreateGoal(t, s, Goal(Alice, "Trip"))
	mine := mustCreateIncome(t, s, Income(Alice, "Salary", "1000", core.NewDate(2025, 1, 25)))
	theirs := mustCreateIncome(t, s, Income(Bob, "Salary", "1000", core.NewDate(2025, 1, 25)))

	_, err := s.LinkIncomes(ctx, Alice, goal.ID, []uuid.UUID{mine.ID, theirs.ID})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	links, _ := s.ListLinks(ctx, Alice)
	if len(links) != 0 {
		t.Fatalf("partial write: %d links", len(links))
	}

	if _, err := s.LinkIncomes(ctx, Bob, goal.ID, []uuid.UUID{theirs.ID}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("linking into a foreign goal should be ErrNotFound, got %v", err)
	}
	if _, err := s.LinkIncomes(ctx, Alice, goal.ID, nil); !errors.Is(err, core.ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
}

func testMultiGoalLink(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	g1 := mustCreateGoal(t, s, Goal(Alice, "One"))
	g2 := mustCreateGoal(t, s, Goal(Alice, "Two"))
	inc := mustCreateIncome(t, s, Income(Alice, "Bonus", "300", core.NewDate(2025, 3, 1)))

	for _, g := range []core.Goal{g1, g2} {
		if n, err := s.LinkIncomes(ctx, Alice, g.ID, []uuid.UUID{inc.ID}); err != nil || n != 1 {
			t.Fatalf("link to %s = %d, %v", g.Name, n, err)
		}
	}
	links, _ := s.ListLinks(ctx, Alice)
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2", len(links))
	}
}

func testUnlink(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	goal := mustCreateGoal(t, s, Goal(Alice, "Trip"))
	inc := mustCreateIncome(t, s, Income(Alice, "Bonus", "200", core.NewDate(2025, 2, 1)))
	if _, err := s.LinkIncomes(ctx, Alice, goal.ID, []uuid.UUID{inc.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := s.UnlinkIncome(ctx, Bob, goal.ID, inc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign unlink should be ErrNotFound, got %v", err)
	}
	if err := s.UnlinkIncome(ctx, Alice, goal.ID, inc.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := s.UnlinkIncome(ctx, Alice, goal.ID, inc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second unlink should be ErrNotFound, got %v", err)
	}
	if _, err := s.GetIncome(ctx, Alice, inc.ID); err != nil {
		t.Fatalf("unlink must keep the income: %v", err)
	}
}

func testDeleteGoalCascade(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	goal := mustCreateGoal(t, s, Goal(Alice, "Trip"))
	other := mustCreateGoal(t, s, Goal(Alice, "Other"))
	a := mustCreateIncome(t, s, Income(Alice, "A", "10", core.NewDate(2025, 2, 1)))
	b := mustCreateIncome(t, s, Income(Alice, "B", "20", core.NewDate(2025, 2, 2)))
	if _, err := s.LinkIncomes(ctx, Alice, goal.ID, []uuid.UUID{a.ID, b.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := s.LinkIncomes(ctx, Alice, other.ID, []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("link other: %v", err)
	}

	if err := s.DeleteGoalCascade(ctx, Alice, goal.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetGoal(ctx, Alice, goal.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("goal still present: %v", err)
	}
	links, _ := s.ListLinks(ctx, Alice)
	for _, l := range links {
		if l.GoalID == goal.ID {
			t.Fatalf("dangling link %+v", l)
		}
	}
	if len(links) != 1 {
		t.Fatalf("other goal's link must survive, got %d links", len(links))
	}
	incomes, _ := s.ListIncomes(ctx, Alice, core.DateRange{})
	if len(incomes) != 2 {
		t.Fatalf("incomes must survive goal deletion, got %d", len(incomes))
	}
}

func testDeleteIncomeCascade(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	goal := mustCreateGoal(t, s, Goal(Alice, "Trip"))
	inc := mustCreateIncome(t, s, Income(Alice, "A", "10", core.NewDate(2025, 2, 1)))
	if _, err := s.LinkIncomes(ctx, Alice, goal.ID, []uuid.UUID{inc.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.DeleteIncome(ctx, Alice, inc.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}
	links, _ := s.ListGoalLinks(ctx, Alice, goal.ID)
	if len(links) != 0 {
		t.Fatalf("links = %d, want 0", len(links))
	}
}

func notedExpense(e core.Expense, note string) core.Expense {
	e.Note = note
	return e
}

func notedIncome(i core.Income, note string) core.Income {
	i.Note = note
	return i
}

func testImportSkipsStored(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	day := core.NewDate(2025, 3, 2)
	expenses := []core.Expense{
		notedExpense(Expense(Alice, "Groceries", "45.50", day), "imported:t1"),
		notedExpense(Expense(Alice, "Groceries", "45.50", day), "imported:t1"),
	}
	incomes := []core.Income{
		notedIncome(Income(Alice, "Salary", "2500", day), "imported:t2"),
		Income(Alice, "Cash", "20", day),
	}

	res, err := s.ImportEntries(ctx, Alice, expenses, incomes)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if want := (ledger.ImportResult{Expenses: 1, Incomes: 2, Duplicates: 1}); res != want {
		t.Fatalf("first import = %+v, want %+v", res, want)
	}

	res, err = s.ImportEntries(ctx, Alice, expenses, incomes)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if want := (ledger.ImportResult{Incomes: 1, Duplicates: 3}); res != want {
		t.Fatalf("retry = %+v, want %+v", res, want)
	}

	gotExpenses, _ := s.ListExpenses(ctx, Alice, core.DateRange{})
	gotIncomes, _ := s.ListIncomes(ctx, Alice, core.DateRange{})
	if len(gotExpenses) != 1 || len(gotIncomes) != 3 {
		t.Fatalf("stored %d expenses, %d incomes, want 1 and 3", len(gotExpenses), len(gotIncomes))
	}
	if gotExpenses[0].UserID != Alice || gotExpenses[0].CreatedAt.IsZero() {
		t.Fatalf("imported expense = %+v", gotExpenses[0])
	}

	res, err = s.ImportEntries(ctx, Bob, []core.Expense{notedExpense(Expense(Bob, "Groceries", "45.50", day), "imported:t1")}, nil)
	if err != nil || res.Expenses != 1 || res.Duplicates != 0 {
		t.Fatalf("another user's import = %+v, %v", res, err)
	}
}

func testImportAllOrNothing(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	day := core.NewDate(2025, 3, 2)
	existing, err := s.CreateExpense(ctx, Expense(Alice, "Rent", "800", day))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	clash := notedExpense(Expense(Alice, "Coffee", "4", day), "imported:t9")
	clash.ID = existing.ID
	batch := []core.Expense{
		notedExpense(Expense(Alice, "Groceries", "45.50", day), "imported:t8"),
		clash,
	}
	if _, err := s.ImportEntries(ctx, Alice, batch, []core.Income{notedIncome(Income(Alice, "Salary", "2500", day), "imported:t7")}); err == nil {
		t.Fatal("expected the conflicting batch to fail")
	}

	gotExpenses, _ := s.ListExpenses(ctx, Alice, core.DateRange{})
	gotIncomes, _ := s.ListIncomes(ctx, Alice, core.DateRange{})
	if len(gotExpenses) != 1 || len(gotIncomes) != 0 {
		t.Fatalf("partial write: %d expenses, %d incomes", len(gotExpenses), len(gotIncomes))
	}
	if got, _ := s.GetExpense(ctx, Alice, existing.ID); got.Title != "Rent" {
		t.Fatalf("existing expense overwritten: %+v", got)
	}

	bad := []core.Income{notedIncome(Income(Alice, "Salary", "2500", day), "imported:t7"), {Title: "Broken"}}
	if _, err := s.ImportEntries(ctx, Alice, nil, bad); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gotIncomes, _ = s.ListIncomes(ctx, Alice, core.DateRange{}); len(gotIncomes) != 0 {
		t.Fatalf("invalid batch wrote %d incomes", len(gotIncomes))
	}
}

func testSnapshots(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	if _, err := s.GetSnapshot(ctx, Alice); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	if err := s.SaveSnapshot(ctx, ledger.Snapshot{UserID: Alice, Payload: []byte(`{"v":1}`), ComputedAt: at}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveSnapshot(ctx, ledger.Snapshot{UserID: Alice, Payload: []byte(`{"v":2}`), ComputedAt: at.Add(time.Hour)}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	snap, err := s.GetSnapshot(ctx, Alice)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(snap.Payload) != `{"v":2}` || !snap.ComputedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("snapshot = %s @ %v", snap.Payload, snap.ComputedAt)
	}

	mustCreateGoal(t, s, Goal(Bob, "Bike"))
	if _, err := s.CreateExpense(ctx, Expense(Alice, "x", "1", core.NewDate(2025, 1, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}
	users, err := s.ListUserIDs(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("users = %v, %v", users, err)
	}
}
