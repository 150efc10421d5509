package progress

import (
	"testing"

	"github.com/google/uuid"

	"pennywise/internal/core"
)

func TestCombineRecentActivityOrdering(t *testing.T) {
	e1 := expense("Groceries", core.CategoryGrocery, "40", core.NewDate(2025, 3, 10))
	e2 := expense("Bus", core.CategoryTransport, "2", core.NewDate(2025, 3, 12))
	i1 := income("1500", core.NewDate(2025, 3, 10))
	goal := vacationGoal()
	link := core.LinkedTransaction{ID: uuid.New(), UserID: userID, GoalID: goal.ID, IncomeID: i1.ID}
	savings := ResolveGoalSavings([]core.Goal{goal}, []core.Income{i1}, []core.LinkedTransaction{link})

	items := CombineRecentActivity([]core.Expense{e1, e2}, []core.Income{i1}, savings, 10)
	if len(items) != 4 {
		t.Fatalf("len = %d, want 4", len(items))
	}

	wantKinds := []core.ActivityKind{core.ActivityExpense, core.ActivityExpense, core.ActivityIncome, core.ActivityGoalSaving}
	wantIDs := []uuid.UUID{e2.ID, e1.ID, i1.ID, link.ID}
	for i := range items {
		if items[i].Kind != wantKinds[i] || items[i].ID != wantIDs[i] {
			t.Errorf("item %d = %s/%s, want %s/%s", i, items[i].Kind, items[i].ID, wantKinds[i], wantIDs[i])
		}
	}

	saving := items[3]
	if saving.Title != goal.Name || saving.GoalID == nil || *saving.GoalID != goal.ID {
		t.Errorf("goal saving item = %+v", saving)
	}
	if !saving.Amount.Equal(i1.Amount) {
		t.Errorf("goal saving amount = %s, want %s", saving.Amount, i1.Amount)
	}
}

func TestCombineRecentActivityTruncates(t *testing.T) {
	var expenses []core.Expense
	for d := 1; d <= 15; d++ {
		expenses = append(expenses, expense("x", core.CategoryOthers, "1", core.NewDate(2025, 1, d)))
	}

	items := CombineRecentActivity(expenses, nil, nil, 0)
	if len(items) != DefaultRecentLimit {
		t.Fatalf("len = %d, want %d", len(items), DefaultRecentLimit)
	}
	if items[0].Date.Day() != 15 || items[9].Date.Day() != 6 {
		t.Fatalf("unexpected window: first=%s last=%s", items[0].Date, items[9].Date)
	}

	few := CombineRecentActivity(expenses[:2], nil, nil, 5)
	if len(few) != 2 {
		t.Fatalf("len = %d, want 2", len(few))
	}
}

func TestResolveGoalSavingsSkipsDanglingLinks(t *testing.T) {
	goal := vacationGoal()
	inc := income("10", core.NewDate(2025, 1, 1))
	links := []core.LinkedTransaction{
		{ID: uuid.New(), GoalID: goal.ID, IncomeID: inc.ID},
		{ID: uuid.New(), GoalID: uuid.New(), IncomeID: inc.ID},
		{ID: uuid.New(), GoalID: goal.ID, IncomeID: uuid.New()},
	}
	if got := ResolveGoalSavings([]core.Goal{goal}, []core.Income{inc}, links); len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestCountMultiLinkedIncomes(t *testing.T) {
	inc := uuid.New()
	links := []core.LinkedTransaction{
		{GoalID: uuid.New(), IncomeID: inc},
		{GoalID: uuid.New(), IncomeID: inc},
		{GoalID: uuid.New(), IncomeID: uuid.New()},
	}
	if got := CountMultiLinkedIncomes(links); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestBuildDashboard(t *testing.T) {
	goal := vacationGoal()
	salary := income("2000", core.NewDate(2025, 3, 25))
	bonus := income("200", core.NewDate(2025, 2, 1))
	budget := core.Budget{
		ID:        uuid.New(),
		Name:      "Food",
		Category:  core.CategoryFood,
		Amount:    dec("200"),
		StartDate: core.NewDate(2025, 3, 1),
		EndDate:   core.NewDate(2025, 3, 31),
	}
	rec := core.UserRecords{
		UserID: userID,
		Expenses: []core.Expense{
			expense("Dinner", core.CategoryFood, "150", core.NewDate(2025, 3, 15)),
			expense("Rent", core.CategoryBills, "900", core.NewDate(2025, 3, 1)),
		},
		Incomes: []core.Income{salary, bonus},
		Goals:   []core.Goal{goal},
		Budgets: []core.Budget{budget},
		Links: []core.LinkedTransaction{
			{ID: uuid.New(), UserID: userID, GoalID: goal.ID, IncomeID: bonus.ID},
		},
	}

	d := BuildDashboard(rec, at(2025, 4, 1), Options{})

	if !d.Totals.Balance.Equal(dec("1150")) {
		t.Errorf("Balance = %s, want 1150", d.Totals.Balance)
	}
	if len(d.Goals) != 1 || !d.Goals[0].SavedAmount.Equal(dec("500")) {
		t.Fatalf("Goals = %+v", d.Goals)
	}
	if d.GoalsOverview.Active != 1 || d.GoalsOverview.Tier != core.TierMakingProgress {
		t.Errorf("GoalsOverview = %+v", d.GoalsOverview)
	}
	if len(d.Budgets) != 1 || d.Budgets[0].Status != core.BudgetOnTrack {
		t.Errorf("Budgets = %+v", d.Budgets)
	}
	if d.EmergencyFund.Months != DefaultEmergencyMonths || !d.EmergencyFund.Target.Equal(dec("3150")) {
		t.Errorf("EmergencyFund = %+v", d.EmergencyFund)
	}
	if len(d.RecentActivity) != 5 {
		t.Errorf("RecentActivity len = %d, want 5", len(d.RecentActivity))
	}
	if d.RecentActivity[0].ID != salary.ID {
		t.Errorf("newest item should be the salary, got %+v", d.RecentActivity[0])
	}
	if len(d.ExpenseBreakdown) != 2 || len(d.IncomeBreakdown) != 1 {
		t.Errorf("breakdowns = %+v / %+v", d.ExpenseBreakdown, d.IncomeBreakdown)
	}
	if !d.ComputedAt.Equal(at(2025, 4, 1)) {
		t.Errorf("ComputedAt = %v", d.ComputedAt)
	}
}
