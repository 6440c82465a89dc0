// Package core provides money parsing and handling utilities.
//
// This file contains the decimal-backed Money type used for every amount in
// the ledger. Amounts are stored as entered (no float conversion) and sums
// are exact.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in the user's currency.
// The zero value is a valid zero amount.
type Money struct {
	Amount decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Amount: d}
}

// MustMoney parses s with ParseSignedMoney and panics on error. Intended for
// fixtures and tests.
func MustMoney(s string) Money {
	m, err := ParseSignedMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core.MustMoney(%q): %v", s, err))
	}
	return m
}

// ParseMoney converts a user-entered decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Signs are rejected: amounts are always
// non-negative and their direction comes from the transaction type.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34, nil
//	ParseMoney("12,34")  -> 12.34, nil
//	ParseMoney("12.345") -> 12.35, nil
//	ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	m, err := ParseSignedMoney(s)
	if err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseSignedMoney is like ParseMoney but allows a leading minus sign. Used for
// account balances, which may be overdrawn.
func ParseSignedMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Amount: d.Round(2)}, nil
}

// Validate rejects negative amounts.
func (m Money) Validate() error {
	if m.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Amount: m.Amount.Add(o.Amount)} }
func (m Money) Sub(o Money) Money { return Money{Amount: m.Amount.Sub(o.Amount)} }
func (m Money) Neg() Money        { return Money{Amount: m.Amount.Neg()} }

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int { return m.Amount.Cmp(o.Amount) }

// Equal reports whether both amounts are numerically equal (1.0 == 1.00).
func (m Money) Equal(o Money) bool { return m.Amount.Equal(o.Amount) }

// String formats with two decimals, e.g. "4800.00".
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Amount.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	parsed, err := ParseSignedMoney(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
