package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits every ledger quantity keeps.
const AmountScale = 8

// NativeAssetID is the asset id of the network's own coin.
const NativeAssetID int64 = 0

// Unit is 1e8, the multiplier that turns a scale-8 amount into an integer.
var Unit = decimal.New(1, AmountScale)

// RoundDown truncates d to AmountScale digits. Settlement code must pass every
// product and quotient through here so no party receives more than it is owed.
func RoundDown(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(AmountScale)
}

// ParseAmount parses s as a scale-8 amount. More than eight fractional digits
// is an error rather than a silent truncation.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !d.Equal(RoundDown(d)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimals", s, AmountScale)
	}
	return d, nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// HasFraction reports whether d has a non-zero fractional part.
func HasFraction(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(0))
}

// ExceedsScale reports whether d carries more than AmountScale fractional digits.
func ExceedsScale(d decimal.Decimal) bool {
	return !d.Equal(RoundDown(d))
}
