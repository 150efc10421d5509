package core

import "github.com/google/uuid"

// UserRecords is everything the aggregator needs for one user, fetched in a
// single batch.
type UserRecords struct {
	UserID   uuid.UUID           `json:"user_id"`
	Expenses []Expense           `json:"expenses"`
	Incomes  []Income            `json:"incomes"`
	Goals    []Goal              `json:"goals"`
	Budgets  []Budget            `json:"budgets"`
	Links    []LinkedTransaction `json:"links"`
}

// LinkedIncomes returns the incomes linked to goalID, in income order.
func (r UserRecords) LinkedIncomes(goalID uuid.UUID) []Income {
	linked := make(map[uuid.UUID]struct{})
	for _, l := range r.Links {
		if l.GoalID == goalID {
			linked[l.IncomeID] = struct{}{}
		}
	}
	out := make([]Income, 0, len(linked))
	for _, inc := range r.Incomes {
		if _, ok := linked[inc.ID]; ok {
			out = append(out, inc)
		}
	}
	return out
}
