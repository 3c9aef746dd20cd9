// Package core provides the quotation ledger: service lines, commission
// allocations, partial payments and every total derived from them.
//
// This file holds the amount helpers. The clinic works in whole currency
// units, so every derived amount is rounded half-up to an integer.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// roundHalfUp rounds a non-negative decimal to the nearest integer unit.
// decimal rounds half away from zero, which is half-up for the values the
// ledger handles.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// percentOf returns round(base * pct / 100).
func percentOf(base, pct int64) int64 {
	return roundHalfUp(decimal.NewFromInt(base).Mul(decimal.NewFromInt(pct)).Div(hundred))
}

// ratioPercent returns round(100 * part / whole), or 0 when whole is 0.
func ratioPercent(part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	return roundHalfUp(decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)))
}

// scale returns round(amount * num / den), or 0 when den is 0.
func scale(amount, num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return roundHalfUp(decimal.NewFromInt(amount).Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den)))
}

// ParseAmount converts a user-entered amount to integer currency units.
//
// It accepts dot (12.5) and comma (12,5) decimal separators and rounds
// half-up to the unit. Negative values and garbage are rejected; zero is
// allowed because commissions and discounts can legitimately be zero.
//
// Examples:
//
//	ParseAmount("150")    -> 150, nil
//	ParseAmount("149,5")  -> 150, nil
//	ParseAmount("149.49") -> 149, nil
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Guard against values that would overflow int64 once rounded.
	if d.GreaterThan(decimal.NewFromInt(1 << 53)) {
		return 0, ErrInvalidAmount
	}
	return roundHalfUp(d), nil
}

// FormatAmount renders an amount with dot thousands separators, e.g. 12500 -> "12.500".
func FormatAmount(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
