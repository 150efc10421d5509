package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const maxTitleLength = 200

type (
	Category string

	Priority string

	Date struct {
		time.Time
	}

	Expense struct {
		ID        uuid.UUID       `json:"id"`
		UserID    uuid.UUID       `json:"user_id"`
		Title     string          `json:"title"`
		Amount    decimal.Decimal `json:"amount"`
		Category  Category        `json:"category"`
		Date      Date            `json:"date"`
		Note      string          `json:"note,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}

	Income struct {
		ID        uuid.UUID       `json:"id"`
		UserID    uuid.UUID       `json:"user_id"`
		Title     string          `json:"title"`
		Amount    decimal.Decimal `json:"amount"`
		Category  Category        `json:"category"`
		Date      Date            `json:"date"`
		Note      string          `json:"note,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}

	Goal struct {
		ID            uuid.UUID       `json:"id"`
		UserID        uuid.UUID       `json:"user_id"`
		Name          string          `json:"name"`
		TargetAmount  decimal.Decimal `json:"target_amount"`
		MonthlySaving decimal.Decimal `json:"monthly_saving"`
		// ManualSaved is the legacy stored amount. Progress never reads it.
		ManualSaved *decimal.Decimal `json:"saved_amount_manual,omitempty"`
		TargetDate  *Date            `json:"target_date,omitempty"`
		Priority    Priority         `json:"priority"`
		CreatedAt   time.Time        `json:"created_at"`
	}

	Budget struct {
		ID        uuid.UUID       `json:"id"`
		UserID    uuid.UUID       `json:"user_id"`
		Name      string          `json:"name"`
		Category  Category        `json:"category"`
		Amount    decimal.Decimal `json:"amount"`
		StartDate Date            `json:"start_date"`
		EndDate   Date            `json:"end_date"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// LinkedTransaction attributes an income to a goal. The (GoalID, IncomeID)
	// pair is unique per store.
	LinkedTransaction struct {
		ID        uuid.UUID `json:"id"`
		UserID    uuid.UUID `json:"user_id"`
		GoalID    uuid.UUID `json:"goal_id"`
		IncomeID  uuid.UUID `json:"income_id"`
		CreatedAt time.Time `json:"created_at"`
	}

	// DateRange is an inclusive filter on record dates. Zero bounds are open.
	DateRange struct {
		From Date
		To   Date
	}
)

// Expense categories.
const (
	CategoryFood      Category = "Food"
	CategoryGrocery   Category = "Grocery"
	CategoryTransport Category = "Transport"
	CategoryTravel    Category = "Travel"
	CategoryBills     Category = "Bills"
	CategoryShopping  Category = "Shopping"
	CategoryOthers    Category = "Others"
)

// Income categories. CategoryOthers is shared.
const (
	CategorySalary      Category = "Salary"
	CategoryFreelance   Category = "Freelance"
	CategoryBusiness    Category = "Business"
	CategoryInvestments Category = "Investments"
)

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

var (
	ExpenseCategories = []Category{CategoryFood, CategoryGrocery, CategoryTransport, CategoryTravel, CategoryBills, CategoryShopping, CategoryOthers}
	IncomeCategories  = []Category{CategorySalary, CategoryFreelance, CategoryBusiness, CategoryInvestments, CategoryOthers}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = fmt.Errorf("title too long (max %d characters)", maxTitleLength)
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidDate     = errors.New("invalid date")
	ErrMissingUser     = errors.New("missing user")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthKey identifies the calendar month as year*12+month.
func (d Date) MonthKey() int {
	return d.Year()*12 + int(d.Month())
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Contains reports whether day falls inside the range, bounds included.
func (r DateRange) Contains(day Date) bool {
	if !r.From.IsZero() && day.Before(r.From.Time) {
		return false
	}
	if !r.To.IsZero() && day.After(r.To.Time) {
		return false
	}
	return true
}

func (c Category) String() string {
	return string(c)
}

// IsExpenseCategory reports whether c belongs to the expense enumeration.
func (c Category) IsExpenseCategory() bool {
	return containsCategory(ExpenseCategories, c)
}

// IsIncomeCategory reports whether c belongs to the income enumeration.
func (c Category) IsIncomeCategory() bool {
	return containsCategory(IncomeCategories, c)
}

func containsCategory(set []Category, c Category) bool {
	for _, v := range set {
		if v == c {
			return true
		}
	}
	return false
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

func (e Expense) Validate() error {
	if e.UserID == uuid.Nil {
		return NewValidationError("user_id", ErrMissingUser.Error())
	}
	if err := validateTitle("title", e.Title); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return NewValidationError("amount", "amount must be greater than zero")
	}
	if !e.Category.IsExpenseCategory() {
		return NewValidationError("category", fmt.Sprintf("%s %q", ErrInvalidCategory, e.Category))
	}
	if err := e.Date.Validate(); err != nil {
		return NewValidationError("date", err.Error())
	}
	return nil
}

func (i Income) Validate() error {
	if i.UserID == uuid.Nil {
		return NewValidationError("user_id", ErrMissingUser.Error())
	}
	if err := validateTitle("title", i.Title); err != nil {
		return err
	}
	if !i.Amount.IsPositive() {
		return NewValidationError("amount", "amount must be greater than zero")
	}
	if !i.Category.IsIncomeCategory() {
		return NewValidationError("category", fmt.Sprintf("%s %q", ErrInvalidCategory, i.Category))
	}
	if err := i.Date.Validate(); err != nil {
		return NewValidationError("date", err.Error())
	}
	return nil
}

func (g Goal) Validate() error {
	if g.UserID == uuid.Nil {
		return NewValidationError("user_id", ErrMissingUser.Error())
	}
	if err := validateTitle("name", g.Name); err != nil {
		return err
	}
	if !g.TargetAmount.IsPositive() {
		return NewValidationError("target_amount", "target amount must be greater than zero")
	}
	if g.MonthlySaving.IsNegative() {
		return NewValidationError("monthly_saving", "monthly saving cannot be negative")
	}
	if g.ManualSaved != nil && g.ManualSaved.IsNegative() {
		return NewValidationError("saved_amount_manual", "saved amount cannot be negative")
	}
	if !g.Priority.IsValid() {
		return NewValidationError("priority", fmt.Sprintf("%s %q", ErrInvalidPriority, g.Priority))
	}
	if g.TargetDate != nil && g.TargetDate.IsZero() {
		return NewValidationError("target_date", "target date cannot be zero")
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID == uuid.Nil {
		return NewValidationError("user_id", ErrMissingUser.Error())
	}
	if err := validateTitle("name", b.Name); err != nil {
		return err
	}
	if !b.Category.IsExpenseCategory() {
		return NewValidationError("category", fmt.Sprintf("%s %q", ErrInvalidCategory, b.Category))
	}
	if !b.Amount.IsPositive() {
		return NewValidationError("amount", "amount must be greater than zero")
	}
	if err := b.StartDate.Validate(); err != nil {
		return NewValidationError("start_date", err.Error())
	}
	if err := b.EndDate.Validate(); err != nil {
		return NewValidationError("end_date", err.Error())
	}
	if b.EndDate.Before(b.StartDate.Time) {
		return NewValidationError("end_date", "end date must not be before start date")
	}
	return nil
}

func validateTitle(field, s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return NewValidationError(field, ErrEmptyTitle.Error())
	}
	if len(s) > maxTitleLength {
		return NewValidationError(field, ErrTitleTooLong.Error())
	}
	return nil
}
