// Package reconcile guards the link registry between goals and incomes: a
// link always joins a goal and an income of the same user, a pair is linked at
// most once, and removing a goal or an income never leaves a dangling link.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
	"pennywise/internal/ledger"
	"pennywise/internal/progress"
)

// Store is the slice of the ledger the guard needs.
type Store interface {
	ledger.GoalStore
	ledger.IncomeStore
	ledger.LinkStore
}

// LinkResult reports the outcome of a link request. Requested counts distinct
// incomes; AlreadyLinked are the ones that were linked before the call.
type LinkResult struct {
	Requested     int `json:"requested"`
	Linked        int `json:"linked"`
	AlreadyLinked int `json:"already_linked"`
}

// GoalReport is a goal with its derived progress and plan.
type GoalReport struct {
	Goal          core.Goal         `json:"goal"`
	Progress      core.GoalProgress `json:"progress"`
	Plan          core.GoalPlan     `json:"plan"`
	LinkedIncomes []core.Income     `json:"linked_incomes"`
}

type Guard struct {
	store Store
	opts  progress.Options
}

func NewGuard(store Store, opts progress.Options) *Guard {
	return &Guard{store: store, opts: opts}
}

// ListLinkableIncomes returns the user's incomes not yet linked to goalID,
// newest first.
func (g *Guard) ListLinkableIncomes(ctx context.Context, userID, goalID uuid.UUID) ([]core.Income, error) {
	if _, err := g.store.GetGoal(ctx, userID, goalID); err != nil {
		return nil, fmt.Errorf("load goal: %w", err)
	}

	incomes, err := g.store.ListIncomes(ctx, userID, core.DateRange{})
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	links, err := g.store.ListGoalLinks(ctx, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("list goal links: %w", err)
	}

	linked := make(map[uuid.UUID]struct{}, len(links))
	for _, l := range links {
		linked[l.IncomeID] = struct{}{}
	}

	out := make([]core.Income, 0, len(incomes))
	for _, inc := range incomes {
		if _, ok := linked[inc.ID]; !ok {
			out = append(out, inc)
		}
	}
	return out, nil
}

// LinkIncomes attaches the incomes to the goal. The store writes all pairs or
// none; pairs that already exist are skipped.
func (g *Guard) LinkIncomes(ctx context.Context, userID, goalID uuid.UUID, incomeIDs []uuid.UUID) (LinkResult, error) {
	if len(incomeIDs) == 0 {
		return LinkResult{}, core.ErrEmptySelection
	}

	unique := make(map[uuid.UUID]struct{}, len(incomeIDs))
	for _, id := range incomeIDs {
		unique[id] = struct{}{}
	}

	n, err := g.store.LinkIncomes(ctx, userID, goalID, incomeIDs)
	if err != nil {
		return LinkResult{}, fmt.Errorf("link incomes: %w", err)
	}

	res := LinkResult{Requested: len(unique), Linked: n, AlreadyLinked: len(unique) - n}
	slog.InfoContext(ctx, "Goal links updated",
		"user_id", userID, "goal_id", goalID,
		"requested", res.Requested, "linked", res.Linked, "already_linked", res.AlreadyLinked)
	return res, nil
}

func (g *Guard) UnlinkIncome(ctx context.Context, userID, goalID, incomeID uuid.UUID) error {
	if err := g.store.UnlinkIncome(ctx, userID, goalID, incomeID); err != nil {
		return fmt.Errorf("unlink income: %w", err)
	}
	return nil
}

// DeleteGoalCascade removes the goal and every link to it. Linked incomes are
// kept.
func (g *Guard) DeleteGoalCascade(ctx context.Context, userID, goalID uuid.UUID) error {
	if err := g.store.DeleteGoalCascade(ctx, userID, goalID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// GoalProgress loads a goal with its linked incomes and derives its progress
// and plan at now.
func (g *Guard) GoalProgress(ctx context.Context, userID, goalID uuid.UUID, now time.Time) (GoalReport, error) {
	goal, err := g.store.GetGoal(ctx, userID, goalID)
	if err != nil {
		return GoalReport{}, fmt.Errorf("load goal: %w", err)
	}

	linked, err := g.linkedIncomes(ctx, userID, goalID)
	if err != nil {
		return GoalReport{}, err
	}

	gp := progress.ComputeGoalProgress(goal, linked, now, g.opts)
	return GoalReport{
		Goal:          goal,
		Progress:      gp,
		Plan:          progress.PlanGoal(goal, gp, now),
		LinkedIncomes: linked,
	}, nil
}

// linkedIncomes resolves the goal's links. A link whose income is gone is
// skipped rather than failing the read.
func (g *Guard) linkedIncomes(ctx context.Context, userID, goalID uuid.UUID) ([]core.Income, error) {
	links, err := g.store.ListGoalLinks(ctx, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("list goal links: %w", err)
	}
	if len(links) == 0 {
		return []core.Income{}, nil
	}

	incomes, err := g.store.ListIncomes(ctx, userID, core.DateRange{})
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	byID := make(map[uuid.UUID]core.Income, len(incomes))
	for _, inc := range incomes {
		byID[inc.ID] = inc
	}

	out := make([]core.Income, 0, len(links))
	for _, l := range links {
		inc, ok := byID[l.IncomeID]
		if !ok {
			slog.WarnContext(ctx, "Link references a missing income", "goal_id", goalID, "income_id", l.IncomeID)
			continue
		}
		out = append(out, inc)
	}
	return out, nil
}
