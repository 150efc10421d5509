package importer

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

func tx(id, desc, value, category string) Transaction {
	return Transaction{
		TransactionID: id,
		Description:   desc,
		PostedDate:    core.NewDate(2025, 3, 10),
		Amount:        Amount{Value: decimal.RequireFromString(value), Currency: "SGD"},
		Category:      category,
	}
}

func TestConvert(t *testing.T) {
	user := uuid.New()
	b := Convert(user, []Transaction{
		tx("t1", "ACME PAYROLL MAR", "3200.00", ""),
		tx("t2", "NTUC FairPrice", "-54.321", "Groceries"),
		tx("t3", "Grab ride", "-12.40", ""),
		tx("t4", "Mystery", "-3", ""),
		tx("t5", "Dividend DBS", "15", "Income"),
		tx("t1", "ACME PAYROLL MAR", "3200.00", ""),
		tx("t6", "nothing", "0.001", ""),
		{TransactionID: "t7", Description: "undated", Amount: Amount{Value: decimal.NewFromInt(5)}},
	}, "SGD")

	if len(b.Incomes) != 2 || len(b.Expenses) != 3 || len(b.Skipped) != 3 {
		t.Fatalf("incomes=%d expenses=%d skipped=%d", len(b.Incomes), len(b.Expenses), len(b.Skipped))
	}

	if got := b.Incomes[0]; got.Category != core.CategorySalary || got.UserID != user || got.Note != "imported:t1" {
		t.Errorf("salary = %+v", got)
	}
	if got := b.Incomes[1].Category; got != core.CategoryInvestments {
		t.Errorf("dividend category = %s", got)
	}

	wantExpenses := []struct {
		category core.Category
		amount   string
	}{
		{core.CategoryGrocery, "54.32"},
		{core.CategoryTransport, "12.4"},
		{core.CategoryOthers, "3"},
	}
	for i, w := range wantExpenses {
		e := b.Expenses[i]
		if e.Category != w.category || !e.Amount.Equal(decimal.RequireFromString(w.amount)) {
			t.Errorf("expense %d = %s %s, want %s %s", i, e.Category, e.Amount, w.category, w.amount)
		}
		if err := e.Validate(); err != nil {
			t.Errorf("expense %d invalid: %v", i, err)
		}
	}

	reasons := map[string]string{}
	for _, s := range b.Skipped {
		reasons[s.TransactionID] = s.Reason
	}
	if reasons["t1"] != "duplicate transaction id" || reasons["t6"] != "zero amount" || reasons["t7"] != "missing posted date" {
		t.Errorf("skipped = %+v", b.Skipped)
	}
}

func TestConvert_Currency(t *testing.T) {
	usd := tx("u1", "Refund", "10", "")
	usd.Amount.Currency = "USD"

	b := Convert(uuid.New(), []Transaction{usd}, "SGD")
	if len(b.Skipped) != 1 || len(b.Incomes) != 0 {
		t.Errorf("foreign currency converted: %+v", b)
	}

	b = Convert(uuid.New(), []Transaction{usd}, "")
	if len(b.Incomes) != 1 {
		t.Errorf("unrestricted batch dropped the row: %+v", b)
	}
}

func TestTitleOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  POS   PURCHASE  ", "POS PURCHASE"},
		{"", defaultTitle},
		{strings.Repeat("é", 150), strings.Repeat("é", 100)},
	}
	for _, tt := range tests {
		if got := titleOf(tt.in); got != tt.want {
			t.Errorf("titleOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
