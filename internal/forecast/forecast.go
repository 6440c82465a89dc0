// Package forecast expands recurring transactions into dated occurrences and
// projects account balances forward in time.
//
// Every exported operation is a pure function of its arguments: callers load
// the ledger (accounts, transactions, cards, invoices, recurrence exceptions)
// and pass it in; nothing is cached or mutated between calls.
package forecast

import (
	"errors"
	"time"

	"cashflow/internal/core"
)

var (
	// ErrIntegrity marks a stored record that cannot be projected, such as a
	// recurring transaction without a day. Such records are excluded and
	// reported as warnings instead of failing the whole computation.
	ErrIntegrity = errors.New("data integrity")

	ErrInvalidWindow = errors.New("invalid date window")
	ErrInvalidPeriod = errors.New("invalid period")
)

// IsValidationError reports whether err was caused by caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) || errors.Is(err, ErrInvalidPeriod) || core.IsValidationError(err)
}

type WarningCode string

const (
	WarnIntegrity    WarningCode = "integrity"
	WarnUnknownCard  WarningCode = "unknown_card"
	WarnStaleBalance WarningCode = "stale_balance"
)

// Warning describes a record that was excluded from, or may distort, a result.
type Warning struct {
	Code     WarningCode `json:"code"`
	SourceID string      `json:"source_id"`
	Message  string      `json:"message"`
}

// Ledger is the full input set of the engine.
type Ledger struct {
	Accounts     []core.BankAccount
	Transactions []core.Transaction
	Cards        []core.CreditCard
	Invoices     []core.CreditCardInvoice
	Exceptions   []core.RecurrenceException
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// NewWindow builds the window [today, target]. Both instants collapse to their
// calendar day, so today counts from start-of-day and target through
// end-of-day: same-day transactions are always included.
func NewWindow(today, target time.Time) Window {
	return Window{Start: core.DateOf(today), End: core.DateOf(target)}
}

// Empty reports whether the window contains no days.
func (w Window) Empty() bool {
	return w.Start.After(w.End.Time)
}

// Contains reports whether d falls on or between the window bounds.
func (w Window) Contains(d core.Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}
