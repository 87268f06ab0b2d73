// Package money holds the fixed-point helpers shared by every component that
// touches amounts. All amounts are shopspring decimals rounded to 2dp.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

// Round2 rounds half away from zero at two decimal places. For the positive
// amounts handled here this is round-half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Cents converts an amount to integer minor units after rounding.
func Cents(d decimal.Decimal) int64 {
	return Round2(d).Shift(Scale).IntPart()
}

// EqualCents compares two amounts in minor units.
func EqualCents(a, b decimal.Decimal) bool {
	return Cents(a) == Cents(b)
}

// Sum adds the provided amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Parse reads a decimal string and rounds it to 2dp.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Round2(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Positive reports whether d is strictly greater than zero once rounded.
func Positive(d decimal.Decimal) bool {
	return Cents(d) > 0
}
