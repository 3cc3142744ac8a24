// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer minor units. Decimal text is only produced or
// consumed at the JSON boundary.
package core

import (
	"bytes"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents).
type Money struct {
	Cents int64
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// NewMoney builds a Money value from whole units and cents, e.g. NewMoney(40, 0).
func NewMoney(units, cents int64) Money {
	return Money{Cents: units*100 + cents}
}

// ParseMoney converts a decimal string to Money with half-up rounding on the
// third fractional digit. Both dot (12.34) and comma (12,34) separators are
// accepted. Negative values are returned as-is; callers decide whether a
// negative or zero amount is acceptable.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidValue
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return Money{}, ErrInvalidValue
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidValue
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Validate rejects non-positive amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidValue
	}
	return nil
}

func (m Money) IsNegative() bool { return m.Cents < 0 }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	parsed, err := ParseMoney(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
