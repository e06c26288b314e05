// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from the loosely
// typed values stores and forms hand back, and for formatting them again.
package core

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on the textual form of an amount.
const (
	maxAmountLen   = 32
	maxAmountScale = 12
)

// MaxAmount is the largest value a NUMERIC(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ParseAmount converts a decimal string to an exact amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and the
// exponent form spreadsheets produce for large numbers (1e+06). Rounding is
// half-up on the third decimal place. Returns ErrInvalidAmount for invalid
// formats, explicit signs, out of range values, or amounts that are not
// strictly positive after rounding.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (rounds up)
//	ParseAmount("0")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseExactAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseExactAmount parses like ParseAmount but keeps every stored decimal
// place. Rollups sum these values as they are.
func ParseExactAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	// Checked before any arithmetic: a huge exponent expands to that many digits.
	if exp := d.Exponent(); exp > maxAmountScale || exp < -maxAmountScale {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() || d.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseAmountValue accepts the loosely typed values JSON bodies and
// spreadsheet cells carry (string, float64, integers, json.Number).
func ParseAmountValue(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		return ParseAmount(val)
	case json.Number:
		return ParseAmount(val.String())
	case float64:
		return ParseAmount(strconv.FormatFloat(val, 'f', -1, 64))
	case float32:
		return ParseAmount(strconv.FormatFloat(float64(val), 'f', -1, 32))
	case int:
		return ParseAmount(strconv.Itoa(val))
	case int64:
		return ParseAmount(strconv.FormatInt(val, 10))
	case decimal.Decimal:
		return ParseAmount(val.String())
	default:
		return decimal.Zero, ErrInvalidAmount
	}
}

// FormatAmount renders an amount with exactly two decimals ("12.30").
// Currency symbols are a presentation concern.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
