// Package core provides the records exchanged with the finance backend and
// the small amount of input handling done before they are sent.
//
// This file contains parsing of user-entered rupiah amounts.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds manual entries well below float64 integer precision.
var maxAmount = decimal.New(1, 15)

// ParseAmount converts a user-entered amount to the number sent to the backend.
//
// It accepts both dot (1500.5) and comma (1500,5) decimal separators, ignores
// surrounding whitespace and rejects signs, zero and anything that is not a
// plain decimal number.
//
// Examples:
//
//	ParseAmount("18500000") -> 18500000, nil
//	ParseAmount("1500,50")  -> 1500.5, nil
//	ParseAmount("-3")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return d.Round(2).InexactFloat64(), nil
}
