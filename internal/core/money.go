// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals with two fractional digits. This file contains
// the parser used by every write path, so records are normalized before they
// reach a store.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits kept on stored amounts.
const AmountPlaces = 2

// ParseAmount converts a user-entered decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two places. Signs, empty input and values that round to zero are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("0.001")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = NormalizeAmount(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeAmount rounds an amount to AmountPlaces.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// SumAmounts adds the given amounts.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
