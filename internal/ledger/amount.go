package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Q2 normalizes a monetary value to two decimal places, rounding half up.
// Every amount is pushed through Q2 before persistence or comparison; the
// only decimal arithmetic in the engine is this normalization and the VAT
// consistency check.
func Q2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Q2Ptr is Q2 over an optional amount; nil stays nil.
func Q2Ptr(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	q := Q2(*v)
	return &q
}

// Cents converts a monetary value to integer cents after Q2 normalization.
func Cents(v decimal.Decimal) int64 {
	return Q2(v).Mul(hundred).IntPart()
}

// FromCents restores a decimal amount from integer cents.
func FromCents(c int64) decimal.Decimal {
	return decimal.NewFromInt(c).Div(hundred)
}

// ParseAmount parses a decimal string into an amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("ledger: parse amount %q: %w", s, err)
	}
	return v, nil
}
