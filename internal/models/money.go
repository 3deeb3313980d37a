package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of fractional digits kept for a currency amount.
const MinorUnitExponent = 2

var (
	ErrMoneyPrecision = errors.New("amount has more than two fractional digits")
	ErrMoneyRange     = errors.New("amount out of range")
	ErrMoneyEmpty     = errors.New("amount is empty")
)

var maxMoney = decimal.NewFromInt(math.MaxInt64)

// Money is an amount in minor currency units (cents).
type Money int64

// MoneyFromDecimal converts a decimal amount in major units to Money.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(MinorUnitExponent)
	if !shifted.IsInteger() {
		return 0, ErrMoneyPrecision
	}
	if shifted.Abs().GreaterThan(maxMoney) {
		return 0, ErrMoneyRange
	}
	return Money(shifted.IntPart()), nil
}

// ParseMoney parses a major-unit string such as "99.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorUnitExponent)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitExponent)
}

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
// A JSON null leaves m untouched.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	data = bytes.Trim(data, `"`)
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrMoneyEmpty
	}
	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
