package progress

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

// ComputeGoalProgress derives the saved amount of a goal as the sum of its
// linked incomes and the monthly accrual since creation.
//
// linked must already be restricted to the incomes linked to goal. The raw
// saved amount is returned uncapped; only the ratio is clamped to [0, 1].
func ComputeGoalProgress(goal core.Goal, linked []core.Income, now time.Time, opts Options) core.GoalProgress {
	linkedTotal := decimal.Zero
	for _, inc := range linked {
		linkedTotal = linkedTotal.Add(inc.Amount)
	}

	months := MonthsBetween(goal.CreatedAt, now)
	if opts.CapAccrualAtTargetDate && goal.TargetDate != nil {
		if limit := MonthsBetween(goal.CreatedAt, goal.TargetDate.Time); months > limit {
			months = limit
		}
	}
	if months < 0 {
		months = 0
	}

	accrued := goal.MonthlySaving.Mul(decimal.NewFromInt(int64(months)))
	saved := linkedTotal.Add(accrued)

	ratio := decimal.Zero
	if goal.TargetAmount.IsPositive() {
		ratio = clampRatio(saved.Div(goal.TargetAmount))
	}

	status := core.GoalInProgress
	if saved.GreaterThanOrEqual(goal.TargetAmount) {
		status = core.GoalCompleted
	}

	return core.GoalProgress{
		GoalID:        goal.ID,
		Name:          goal.Name,
		TargetAmount:  goal.TargetAmount,
		LinkedAmount:  linkedTotal,
		AccruedAmount: accrued,
		MonthsElapsed: months,
		SavedAmount:   saved,
		ProgressRatio: ratio,
		Remaining:     nonNegative(goal.TargetAmount.Sub(saved)),
		Status:        status,
	}
}

// SummarizeGoals counts active and completed goals and grades the average
// progress into a motivational tier.
func SummarizeGoals(goals []core.GoalProgress) core.GoalsOverview {
	overview := core.GoalsOverview{
		AverageProgress: decimal.Zero,
		Tier:            core.TierNone,
	}
	if len(goals) == 0 {
		return overview
	}

	sum := decimal.Zero
	for _, g := range goals {
		if g.Status == core.GoalCompleted {
			overview.Completed++
		} else {
			overview.Active++
		}
		sum = sum.Add(g.ProgressRatio)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(goals)))).RoundFloor(ratioPlaces)
	overview.AverageProgress = avg
	overview.Tier = tierFor(avg)
	return overview
}

func tierFor(avg decimal.Decimal) core.ProgressTier {
	switch {
	case avg.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return core.TierAchieved
	case avg.GreaterThan(decimal.NewFromFloat(0.75)):
		return core.TierAlmostThere
	case avg.GreaterThan(decimal.NewFromFloat(0.5)):
		return core.TierOverHalfway
	case avg.GreaterThan(decimal.NewFromFloat(0.25)):
		return core.TierMakingProgress
	default:
		return core.TierGettingStarted
	}
}

// PlanGoal computes what is still needed to finish a goal.
//
// With a target date it spreads the remaining amount over the months left,
// never fewer than one. Without one it estimates the months the current
// monthly saving needs to close the gap.
func PlanGoal(goal core.Goal, gp core.GoalProgress, now time.Time) core.GoalPlan {
	today := core.DateOf(now)
	plan := core.GoalPlan{GoalID: goal.ID, TargetDate: goal.TargetDate}

	if goal.TargetDate != nil {
		days := int(math.Ceil(goal.TargetDate.Sub(today.Time).Hours() / 24))
		if days < 0 {
			days = 0
		}
		months := MonthsBetween(today.Time, goal.TargetDate.Time)
		if months < 1 {
			months = 1
		}
		needed := gp.Remaining.Div(decimal.NewFromInt(int64(months))).Round(core.AmountPlaces)
		plan.DaysRemaining = &days
		plan.MonthsRemaining = &months
		plan.NeededPerMonth = &needed
		return plan
	}

	if !gp.Remaining.IsPositive() {
		zero := 0
		plan.MonthsToComplete = &zero
		plan.EstimatedCompletion = &today
		return plan
	}
	if goal.MonthlySaving.IsPositive() {
		months := int(gp.Remaining.Div(goal.MonthlySaving).Ceil().IntPart())
		eta := core.DateOf(today.AddDate(0, months, 0))
		plan.MonthsToComplete = &months
		plan.EstimatedCompletion = &eta
	}
	return plan
}
