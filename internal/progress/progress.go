// Package progress derives totals, goal progress, budget utilization and the
// other dashboard figures from a user's raw records.
//
// Every function here is pure: no I/O, no shared state, and the current
// instant is always passed in by the caller.
package progress

import (
	"time"

	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

const (
	DefaultEmergencyMonths = 3
	DefaultRecentLimit     = 10

	ratioPlaces = 4
)

// Options tunes the aggregation. The zero value is usable.
type Options struct {
	MatchMode       core.BudgetMatchMode
	EmergencyMonths int
	RecentLimit     int
	// CapAccrualAtTargetDate stops monthly accrual at the goal target date.
	CapAccrualAtTargetDate bool
}

// DefaultOptions returns the defaults applied to zero fields.
func DefaultOptions() Options {
	return Options{
		MatchMode:       core.MatchCategory,
		EmergencyMonths: DefaultEmergencyMonths,
		RecentLimit:     DefaultRecentLimit,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if !o.MatchMode.IsValid() {
		o.MatchMode = d.MatchMode
	}
	if o.EmergencyMonths <= 0 {
		o.EmergencyMonths = d.EmergencyMonths
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = d.RecentLimit
	}
	return o
}

// MonthsBetween counts whole calendar months from from to to.
//
// A month is complete once the day-of-month of to reaches the day of from, or
// to is the last day of a month shorter than that day. Time of day is ignored.
// The result is negative when to precedes from.
func MonthsBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months > 0 && to.Day() < from.Day() && !isLastDayOfMonth(to) {
		months--
	}
	if months < 0 && to.Day() > from.Day() && !isLastDayOfMonth(from) {
		months++
	}
	return months
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

// clampRatio bounds r to [0, 1] and truncates it for presentation. Rounding
// down keeps a ratio below 1 from displaying as 1.
func clampRatio(r decimal.Decimal) decimal.Decimal {
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return r.RoundFloor(ratioPlaces)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
