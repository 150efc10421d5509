package progress

import (
	"sort"

	"github.com/google/uuid"

	"pennywise/internal/core"
)

// GoalSaving is a link resolved to its goal and income.
type GoalSaving struct {
	Link   core.LinkedTransaction
	Goal   core.Goal
	Income core.Income
}

// ResolveGoalSavings joins links with their goal and income. Links whose goal
// or income is missing from the inputs are skipped.
func ResolveGoalSavings(goals []core.Goal, incomes []core.Income, links []core.LinkedTransaction) []GoalSaving {
	goalByID := make(map[uuid.UUID]core.Goal, len(goals))
	for _, g := range goals {
		goalByID[g.ID] = g
	}
	incomeByID := make(map[uuid.UUID]core.Income, len(incomes))
	for _, i := range incomes {
		incomeByID[i.ID] = i
	}

	out := make([]GoalSaving, 0, len(links))
	for _, l := range links {
		g, ok := goalByID[l.GoalID]
		if !ok {
			continue
		}
		inc, ok := incomeByID[l.IncomeID]
		if !ok {
			continue
		}
		out = append(out, GoalSaving{Link: l, Goal: g, Income: inc})
	}
	return out
}

// CombineRecentActivity merges expenses, incomes and goal savings into one
// feed, newest first, truncated to limit (DefaultRecentLimit when limit <= 0).
//
// Items dated the same day keep source order: expenses, then incomes, then
// goal savings, each in input order.
func CombineRecentActivity(expenses []core.Expense, incomes []core.Income, savings []GoalSaving, limit int) []core.ActivityItem {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	items := make([]core.ActivityItem, 0, len(expenses)+len(incomes)+len(savings))
	for _, e := range expenses {
		items = append(items, core.ActivityItem{
			Kind:     core.ActivityExpense,
			ID:       e.ID,
			Title:    e.Title,
			Amount:   e.Amount,
			Category: e.Category,
			Date:     e.Date,
		})
	}
	for _, i := range incomes {
		items = append(items, core.ActivityItem{
			Kind:     core.ActivityIncome,
			ID:       i.ID,
			Title:    i.Title,
			Amount:   i.Amount,
			Category: i.Category,
			Date:     i.Date,
		})
	}
	for _, s := range savings {
		goalID := s.Goal.ID
		items = append(items, core.ActivityItem{
			Kind:   core.ActivityGoalSaving,
			ID:     s.Link.ID,
			Title:  s.Goal.Name,
			Amount: s.Income.Amount,
			Date:   s.Income.Date,
			GoalID: &goalID,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date.Time)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// CountMultiLinkedIncomes returns how many incomes count toward more than one
// goal.
func CountMultiLinkedIncomes(links []core.LinkedTransaction) int {
	goalsPerIncome := make(map[uuid.UUID]int)
	for _, l := range links {
		goalsPerIncome[l.IncomeID]++
	}
	n := 0
	for _, c := range goalsPerIncome {
		if c > 1 {
			n++
		}
	}
	return n
}
