// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing donation amounts from CSV cells
// and formatting them for display in US dollars.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a CSV amount cell into a decimal.
//
// Currency symbols, thousands separators and surrounding whitespace are
// ignored. Negative values are accepted (refunds show up as negative gifts).
//
// Examples:
//
//	ParseAmount("12.50")     -> 12.50, nil
//	ParseAmount("$1,200")    -> 1200, nil
//	ParseAmount(" -5 ")      -> -5, nil
//	ParseAmount("n/a")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatUSD renders an amount as dollars with two decimals and grouping,
// e.g. "$1,234.50" or "-$5.00". The amount is rounded half away from zero
// without passing through a float.
func FormatUSD(d decimal.Decimal) string {
	r := d.Round(2)
	fixed := r.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")
	s := "$" + groupThousands(whole) + "." + cents
	if r.IsNegative() {
		return "-" + s
	}
	return s
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
