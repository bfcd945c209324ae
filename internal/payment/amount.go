package payment

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxMinorUnits caps a single payment at one hundred crore rupees.
const MaxMinorUnits int64 = 100_000_000_000

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(MaxMinorUnits)
)

// ToMinorUnits converts a major-unit amount (rupees) to minor units (paise),
// rounding to the nearest integer. The result must lie in (0, MaxMinorUnits].
func ToMinorUnits(major float64) (int64, error) {
	if math.IsNaN(major) || math.IsInf(major, 0) {
		return 0, fmt.Errorf("amount must be a finite number")
	}
	amount := decimal.NewFromFloat(major)
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero, got %s", amount.String())
	}
	minor := amount.Mul(hundred).Round(0)
	if !minor.IsPositive() {
		return 0, fmt.Errorf("amount %s rounds to zero minor units", amount.String())
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount %s exceeds the maximum of %s", amount.String(), ToMajorUnits(MaxMinorUnits).String())
	}
	return minor.IntPart(), nil
}

// ToMajorUnits converts minor units back to a decimal major-unit value.
func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
