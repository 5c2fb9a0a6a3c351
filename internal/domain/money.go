package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents). All persisted balances,
// entry amounts, cost bases and realized PnL use this type; decimal values from
// broker exports are converted exactly once at the engine boundary.
type Money int64

var centShift = decimal.New(1, 2) // 10^2

// MoneyFromDecimal converts a major-unit decimal (e.g. 199.35) to minor units,
// rounding half away from zero at the cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(centShift).Round(0).IntPart())
}

// Decimal returns the major-unit decimal representation.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Abs returns the positive magnitude.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// String formats in major units, e.g. 19935 -> "199.35".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// GoString helps test failure output stay readable.
func (m Money) GoString() string {
	return fmt.Sprintf("Money(%s)", m.String())
}
