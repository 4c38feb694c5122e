package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-precision amount in the tenant currency. All arithmetic
// happens on decimals; values are rounded half-away-from-zero to 2 decimals
// only at display and persistence boundaries.
type Money struct {
	d decimal.Decimal
}

var ZeroMoney = Money{}

func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d: d} }

func MoneyFromFloat(f float64) Money { return Money{d: decimal.NewFromFloat(f)} }

// MoneyFromMinor builds a Money from scaled integer minor units (cents).
func MoneyFromMinor(m int64) Money { return Money{d: decimal.New(m, -2)} }

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money{d: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) MulInt(n int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))} }

func (m Money) Mul(factor decimal.Decimal) Money { return Money{d: m.d.Mul(factor)} }

// Rounded rounds half-away-from-zero to 2 decimal places.
func (m Money) Rounded() Money { return Money{d: m.d.Round(2)} }

// Minor returns the rounded amount in integer minor units.
func (m Money) Minor() int64 { return m.d.Round(2).Shift(2).IntPart() }

func (m Money) Float64() float64 { return m.d.Round(2).InexactFloat64() }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// String renders the amount with exactly two decimals, e.g. "12.50".
func (m Money) String() string { return m.d.Round(2).StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) { return m.d.Round(2).MarshalJSON() }

func (m *Money) UnmarshalJSON(b []byte) error { return m.d.UnmarshalJSON(b) }

// Distance is a distance in kilometres.
type Distance float64

func (d Distance) Km() float64 { return float64(d) }

// String renders the distance the way it is shown to customers, e.g. "1.23 km".
func (d Distance) String() string { return fmt.Sprintf("%.2f km", float64(d)) }
