package progress

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

// ComputeTotals sums every income and expense of a user.
func ComputeTotals(incomes []core.Income, expenses []core.Expense) core.Totals {
	income := decimal.Zero
	for _, i := range incomes {
		income = income.Add(i.Amount)
	}
	spent := decimal.Zero
	for _, e := range expenses {
		spent = spent.Add(e.Amount)
	}
	return core.Totals{
		TotalIncome:   income,
		TotalExpenses: spent,
		Balance:       income.Sub(spent),
	}
}

// ComputeBudgetUtilization sums the expenses falling inside the budget window.
//
// Both window bounds are inclusive. In MatchCategoryAndTitle mode an expense
// also needs a title equal to the budget name, ignoring case and padding.
func ComputeBudgetUtilization(b core.Budget, expenses []core.Expense, mode core.BudgetMatchMode) core.BudgetUtilization {
	window := core.DateRange{From: b.StartDate, To: b.EndDate}
	name := normalizeTitle(b.Name)

	spent := decimal.Zero
	matched := 0
	for _, e := range expenses {
		if e.Category != b.Category || !window.Contains(e.Date) {
			continue
		}
		if mode == core.MatchCategoryAndTitle && normalizeTitle(e.Title) != name {
			continue
		}
		spent = spent.Add(e.Amount)
		matched++
	}

	used := decimal.Zero
	if b.Amount.IsPositive() {
		used = spent.Div(b.Amount).RoundFloor(ratioPlaces)
	}

	status := core.BudgetOnTrack
	if spent.GreaterThanOrEqual(b.Amount) {
		status = core.BudgetOverBudget
	}

	return core.BudgetUtilization{
		BudgetID:     b.ID,
		Name:         b.Name,
		Category:     b.Category,
		Amount:       b.Amount,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		SpentAmount:  spent,
		Remaining:    nonNegative(b.Amount.Sub(spent)),
		UsedRatio:    used,
		MatchedCount: matched,
		Status:       status,
	}
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ComputeEmergencyFund recommends months times the average monthly spend.
//
// The average is taken over the distinct calendar months that have at least
// one expense. A negative balance counts as no progress.
func ComputeEmergencyFund(expenses []core.Expense, months int, balance decimal.Decimal) core.EmergencyFund {
	if months <= 0 {
		months = DefaultEmergencyMonths
	}

	total := decimal.Zero
	seen := make(map[int]struct{})
	for _, e := range expenses {
		total = total.Add(e.Amount)
		seen[e.Date.MonthKey()] = struct{}{}
	}
	distinct := len(seen)
	if distinct == 0 {
		distinct = 1
	}

	// target = total * months / distinct; amounts are rounded only on output.
	target := total.Mul(decimal.NewFromInt(int64(months))).Div(decimal.NewFromInt(int64(distinct)))
	avg := total.Div(decimal.NewFromInt(int64(distinct)))

	progress := decimal.Zero
	if target.IsPositive() {
		progress = clampRatio(nonNegative(balance).Div(target))
	}

	return core.EmergencyFund{
		AverageMonthlyExpense: avg.Round(core.AmountPlaces),
		Months:                months,
		Target:                target.Round(core.AmountPlaces),
		Progress:              progress,
	}
}

// ExpenseBreakdown groups expenses by category, largest amount first.
func ExpenseBreakdown(expenses []core.Expense) []core.CategoryAmount {
	acc := newBreakdown()
	for _, e := range expenses {
		acc.add(e.Category, e.Amount)
	}
	return acc.sorted()
}

// IncomeBreakdown groups incomes by category, largest amount first.
func IncomeBreakdown(incomes []core.Income) []core.CategoryAmount {
	acc := newBreakdown()
	for _, i := range incomes {
		acc.add(i.Category, i.Amount)
	}
	return acc.sorted()
}

type breakdown map[core.Category]*core.CategoryAmount

func newBreakdown() breakdown {
	return make(breakdown)
}

func (b breakdown) add(c core.Category, amount decimal.Decimal) {
	entry, ok := b[c]
	if !ok {
		entry = &core.CategoryAmount{Category: c, Amount: decimal.Zero}
		b[c] = entry
	}
	entry.Amount = entry.Amount.Add(amount)
	entry.Count++
}

func (b breakdown) sorted() []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(b))
	for _, entry := range b {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
