package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	GoalStatus      string
	BudgetStatus    string
	ActivityKind    string
	ProgressTier    string
	BudgetMatchMode string
)

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"

	BudgetOnTrack    BudgetStatus = "on_track"
	BudgetOverBudget BudgetStatus = "over_budget"

	ActivityExpense    ActivityKind = "expense"
	ActivityIncome     ActivityKind = "income"
	ActivityGoalSaving ActivityKind = "goal_saving"

	TierNone           ProgressTier = "no_goals"
	TierGettingStarted ProgressTier = "getting_started"
	TierMakingProgress ProgressTier = "making_progress"
	TierOverHalfway    ProgressTier = "over_halfway"
	TierAlmostThere    ProgressTier = "almost_there"
	TierAchieved       ProgressTier = "achieved"

	// MatchCategory counts every expense of the budget category.
	MatchCategory BudgetMatchMode = "category"
	// MatchCategoryAndTitle also requires the expense title to equal the
	// budget name, ignoring case and surrounding space.
	MatchCategoryAndTitle BudgetMatchMode = "category_title"
)

func (m BudgetMatchMode) IsValid() bool {
	return m == MatchCategory || m == MatchCategoryAndTitle
}

// Totals is the lifetime ledger position of a user.
type Totals struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Balance       decimal.Decimal `json:"balance"`
}

// GoalProgress is derived on read, never stored.
type GoalProgress struct {
	GoalID        uuid.UUID       `json:"goal_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	LinkedAmount  decimal.Decimal `json:"linked_amount"`
	AccruedAmount decimal.Decimal `json:"accrued_amount"`
	MonthsElapsed int             `json:"months_elapsed"`
	SavedAmount   decimal.Decimal `json:"saved_amount"`
	ProgressRatio decimal.Decimal `json:"progress_ratio"`
	Remaining     decimal.Decimal `json:"remaining"`
	Status        GoalStatus      `json:"status"`
}

// GoalPlan tells the user what it takes to finish a goal.
type GoalPlan struct {
	GoalID              uuid.UUID        `json:"goal_id"`
	TargetDate          *Date            `json:"target_date,omitempty"`
	DaysRemaining       *int             `json:"days_remaining,omitempty"`
	MonthsRemaining     *int             `json:"months_remaining,omitempty"`
	NeededPerMonth      *decimal.Decimal `json:"needed_per_month,omitempty"`
	MonthsToComplete    *int             `json:"months_to_complete,omitempty"`
	EstimatedCompletion *Date            `json:"estimated_completion,omitempty"`
}

// GoalsOverview summarizes every goal of a user.
type GoalsOverview struct {
	Active          int             `json:"active"`
	Completed       int             `json:"completed"`
	AverageProgress decimal.Decimal `json:"average_progress"`
	Tier            ProgressTier    `json:"tier"`
}

type BudgetUtilization struct {
	BudgetID     uuid.UUID       `json:"budget_id"`
	Name         string          `json:"name"`
	Category     Category        `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	StartDate    Date            `json:"start_date"`
	EndDate      Date            `json:"end_date"`
	SpentAmount  decimal.Decimal `json:"spent_amount"`
	Remaining    decimal.Decimal `json:"remaining"`
	UsedRatio    decimal.Decimal `json:"used_ratio"`
	MatchedCount int             `json:"matched_count"`
	Status       BudgetStatus    `json:"status"`
}

type EmergencyFund struct {
	AverageMonthlyExpense decimal.Decimal `json:"average_monthly_expense"`
	Months                int             `json:"months"`
	Target                decimal.Decimal `json:"target"`
	Progress              decimal.Decimal `json:"progress"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

type ActivityItem struct {
	Kind     ActivityKind    `json:"kind"`
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category Category        `json:"category,omitempty"`
	Date     Date            `json:"date"`
	GoalID   *uuid.UUID      `json:"goal_id,omitempty"`
}

// Dashboard is the full per-user aggregate.
type Dashboard struct {
	UserID            uuid.UUID           `json:"user_id"`
	ComputedAt        time.Time           `json:"computed_at"`
	Totals            Totals              `json:"totals"`
	ExpenseBreakdown  []CategoryAmount    `json:"expense_breakdown"`
	IncomeBreakdown   []CategoryAmount    `json:"income_breakdown"`
	Goals             []GoalProgress      `json:"goals"`
	GoalsOverview     GoalsOverview       `json:"goals_overview"`
	Budgets           []BudgetUtilization `json:"budgets"`
	EmergencyFund     EmergencyFund       `json:"emergency_fund"`
	RecentActivity    []ActivityItem      `json:"recent_activity"`
	MultiLinkedIncome int                 `json:"multi_linked_incomes"`
}
