// Package money provides the fixed-point amount type used for every
// monetary field in the system. Amounts are never floats; arithmetic
// rounds explicitly to two decimal places.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrBadCurrency      = errors.New("currency must be a 3-letter code")
)

const scale = 2

type Money struct {
	amount   decimal.Decimal
	currency string
}

func New(amount decimal.Decimal, currency string) (Money, error) {
	cur, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount.Round(scale), currency: cur}, nil
}

// FromString parses a decimal string like "100.00".
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return New(d, currency)
}

// FromMinorUnits builds an amount from the smallest currency unit
// (cents for USD).
func FromMinorUnits(minor int64, currency string) (Money, error) {
	return New(decimal.New(minor, -scale), currency)
}

func Zero(currency string) Money {
	m, _ := New(decimal.Zero, currency)
	return m
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "", ErrBadCurrency
	}
	return c, nil
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

// MinorUnits returns the amount in the smallest currency unit.
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(scale).IntPart()
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount).Round(scale), currency: m.currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount).Round(scale), currency: m.currency}, nil
}

// Mul scales the amount by an integer quantity (line item qty * unit price).
func (m Money) Mul(qty int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(qty)).Round(scale), currency: m.currency}
}

func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

func (m Money) String() string {
	return m.amount.StringFixed(scale) + " " + m.currency
}

// StringAmount is the bare fixed-point amount, used when storing the
// numeric column separately from the currency column.
func (m Money) StringAmount() string {
	return m.amount.StringFixed(scale)
}
