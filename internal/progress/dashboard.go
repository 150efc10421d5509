package progress

import (
	"time"

	"pennywise/internal/core"
)

// BuildDashboard composes every aggregate for one user's records.
func BuildDashboard(rec core.UserRecords, now time.Time, opts Options) core.Dashboard {
	opts = opts.withDefaults()

	totals := ComputeTotals(rec.Incomes, rec.Expenses)

	goals := make([]core.GoalProgress, 0, len(rec.Goals))
	for _, g := range rec.Goals {
		goals = append(goals, ComputeGoalProgress(g, rec.LinkedIncomes(g.ID), now, opts))
	}

	budgets := make([]core.BudgetUtilization, 0, len(rec.Budgets))
	for _, b := range rec.Budgets {
		budgets = append(budgets, ComputeBudgetUtilization(b, rec.Expenses, opts.MatchMode))
	}

	savings := ResolveGoalSavings(rec.Goals, rec.Incomes, rec.Links)

	return core.Dashboard{
		UserID:            rec.UserID,
		ComputedAt:        now.UTC(),
		Totals:            totals,
		ExpenseBreakdown:  ExpenseBreakdown(rec.Expenses),
		IncomeBreakdown:   IncomeBreakdown(rec.Incomes),
		Goals:             goals,
		GoalsOverview:     SummarizeGoals(goals),
		Budgets:           budgets,
		EmergencyFund:     ComputeEmergencyFund(rec.Expenses, opts.EmergencyMonths, totals.Balance),
		RecentActivity:    CombineRecentActivity(rec.Expenses, rec.Incomes, savings, opts.RecentLimit),
		MultiLinkedIncome: CountMultiLinkedIncomes(rec.Links),
	}
}
