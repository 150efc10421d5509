// Package importer converts transactions fetched from the banking aggregator
// into ledger records. Credits become incomes, debits become expenses; the
// result is indistinguishable from a manual entry.
package importer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

const (
	defaultTitle = "Imported transaction"
	maxTitle     = 200
	notePrefix   = "imported:"
)

type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// Transaction is one aggregator row.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	Description   string    `json:"description"`
	PostedDate    core.Date `json:"posted_date"`
	Amount        Amount    `json:"amount"`
	Category      string    `json:"category"`
}

// Skipped names a transaction that was not converted and why.
type Skipped struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type Batch struct {
	Expenses []core.Expense
	Incomes  []core.Income
	Skipped  []Skipped
}

// Keyword tables are checked in order against the aggregator category, then
// the description. The first hit wins.
var expenseKeywords = []struct {
	category core.Category
	words    []string
}{
	{core.CategoryGrocery, []string{"grocery", "groceries", "supermarket"}},
	{core.CategoryFood, []string{"food", "restaurant", "dining", "cafe", "coffee"}},
	{core.CategoryTransport, []string{"transport", "taxi", "uber", "grab", "fuel", "petrol", "parking", "transit"}},
	{core.CategoryTravel, []string{"travel", "airline", "flight", "hotel"}},
	{core.CategoryBills, []string{"bill", "utilit", "electric", "water", "internet", "phone", "insurance", "rent"}},
	{core.CategoryShopping, []string{"shopping", "retail", "amazon", "lazada", "shopee"}},
}

var incomeKeywords = []struct {
	category core.Category
	words    []string
}{
	{core.CategorySalary, []string{"salary", "payroll", "wage"}},
	{core.CategoryFreelance, []string{"freelance", "contract", "upwork", "fiverr"}},
	{core.CategoryBusiness, []string{"business", "invoice", "sales"}},
	{core.CategoryInvestments, []string{"dividend", "interest", "investment"}},
}

// Convert maps transactions for userID. Zero amounts, undated rows and
// repeated transaction IDs are skipped. currency, when set, restricts the
// batch to that currency.
func Convert(userID uuid.UUID, txs []Transaction, currency string) Batch {
	var b Batch
	seen := make(map[string]struct{}, len(txs))

	for _, tx := range txs {
		if tx.TransactionID != "" {
			if _, dup := seen[tx.TransactionID]; dup {
				b.Skipped = append(b.Skipped, Skipped{tx.TransactionID, "duplicate transaction id"})
				continue
			}
			seen[tx.TransactionID] = struct{}{}
		}

		if reason := rejectReason(tx, currency); reason != "" {
			b.Skipped = append(b.Skipped, Skipped{tx.TransactionID, reason})
			continue
		}

		amount := core.NormalizeAmount(tx.Amount.Value)
		title := titleOf(tx.Description)
		note := ""
		if tx.TransactionID != "" {
			note = notePrefix + tx.TransactionID
		}

		if amount.IsPositive() {
			b.Incomes = append(b.Incomes, core.Income{
				UserID:   userID,
				Title:    title,
				Amount:   amount,
				Category: classify(incomeKeywords, tx.Category, tx.Description),
				Date:     tx.PostedDate,
				Note:     note,
			})
			continue
		}
		b.Expenses = append(b.Expenses, core.Expense{
			UserID:   userID,
			Title:    title,
			Amount:   amount.Abs(),
			Category: classify(expenseKeywords, tx.Category, tx.Description),
			Date:     tx.PostedDate,
			Note:     note,
		})
	}
	return b
}

func rejectReason(tx Transaction, currency string) string {
	if tx.PostedDate.IsZero() {
		return "missing posted date"
	}
	if core.NormalizeAmount(tx.Amount.Value).IsZero() {
		return "zero amount"
	}
	if currency != "" && tx.Amount.Currency != "" && !strings.EqualFold(tx.Amount.Currency, currency) {
		return fmt.Sprintf("currency %s not supported", tx.Amount.Currency)
	}
	return ""
}

func classify(table []struct {
	category core.Category
	words    []string
}, fields ...string) core.Category {
	for _, f := range fields {
		f = strings.ToLower(f)
		if f == "" {
			continue
		}
		for _, row := range table {
			for _, w := range row.words {
				if strings.Contains(f, w) {
					return row.category
				}
			}
		}
	}
	return core.CategoryOthers
}

func titleOf(desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		return defaultTitle
	}
	if len(desc) <= maxTitle {
		return desc
	}
	cut := maxTitle
	for cut > 0 && !utf8.RuneStart(desc[cut]) {
		cut--
	}
	return desc[:cut]
}
