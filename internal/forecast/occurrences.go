package forecast

import (
	"fmt"
	"iter"

	"cashflow/internal/core"
)

// Occurrence is one dated instance of a transaction inside a window.
type Occurrence struct {
	ID                     string               `json:"id"`
	SourceID               string               `json:"source_id"`
	Description            string               `json:"description"`
	Amount                 core.Money           `json:"amount"`
	Type                   core.TransactionType `json:"type"`
	ExpenseType            core.ExpenseType     `json:"expense_type,omitempty"`
	Date                   core.Date            `json:"date"`
	IsRecurring            bool                 `json:"is_recurring"`
	Overridden             bool                 `json:"overridden"`
	SubscriptionCardID     string               `json:"subscription_card,omitempty"`
	SubscriptionBillingDay int                  `json:"subscription_billing_day,omitempty"`
	SubscriptionCardDueDay int                  `json:"subscription_card_due_day,omitempty"`
}

// OccurrenceID is the stable id of the occurrence of txID on d.
func OccurrenceID(txID string, d core.Date) string {
	return txID + "-" + d.Key()
}

type exceptionKey struct {
	txID string
	date string
}

// ExceptionIndex looks up recurrence exceptions by (transaction, date).
// A nil index has no exceptions.
type ExceptionIndex map[exceptionKey]core.RecurrenceException

// NewExceptionIndex indexes exceptions. A later exception for the same
// (transaction, date) replaces an earlier one.
func NewExceptionIndex(exceptions []core.RecurrenceException) ExceptionIndex {
	ix := make(ExceptionIndex, len(exceptions))
	for _, e := range exceptions {
		ix[exceptionKey{txID: e.TransactionID, date: e.Date.Key()}] = e
	}
	return ix
}

func (ix ExceptionIndex) Lookup(txID string, d core.Date) (core.RecurrenceException, bool) {
	e, ok := ix[exceptionKey{txID: txID, date: d.Key()}]
	return e, ok
}

// Generate returns the occurrences of tx inside w in ascending date order.
//
// Recurring transactions yield one occurrence per month on their effective
// day, up to and including RecurrenceEndDate. Exceptions apply only to
// recurring transactions: delete suppresses the occurrence, edit replaces its
// amount and/or description. Transactions whose schedule fields are missing or
// out of range are rejected with ErrIntegrity.
func Generate(tx core.Transaction, w Window, ex ExceptionIndex) (iter.Seq[Occurrence], error) {
	dater, err := GetDater(KindOf(tx))
	if err != nil {
		return nil, err
	}
	if err := dater.Check(tx); err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %v", ErrIntegrity, tx.ID, err)
	}

	return func(yield func(Occurrence) bool) {
		for d := range dater.Dates(tx, w) {
			occ := newOccurrence(tx, d)
			if tx.IsRecurring {
				if e, ok := ex.Lookup(tx.ID, d); ok {
					if e.Action == core.ExceptionDelete {
						continue
					}
					occ.apply(e)
				}
			}
			if !yield(occ) {
				return
			}
		}
	}, nil
}

// Occurrences collects Generate into a slice.
func Occurrences(tx core.Transaction, w Window, ex ExceptionIndex) ([]Occurrence, error) {
	seq, err := Generate(tx, w, ex)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for occ := range seq {
		out = append(out, occ)
	}
	return out, nil
}

func newOccurrence(tx core.Transaction, d core.Date) Occurrence {
	return Occurrence{
		ID:                     OccurrenceID(tx.ID, d),
		SourceID:               tx.ID,
		Description:            tx.Description,
		Amount:                 tx.Amount,
		Type:                   tx.Type,
		ExpenseType:            tx.ExpenseType,
		Date:                   d,
		IsRecurring:            tx.IsRecurring,
		SubscriptionCardID:     tx.SubscriptionCardID,
		SubscriptionBillingDay: tx.SubscriptionBillingDay,
		SubscriptionCardDueDay: tx.SubscriptionCardDueDay,
	}
}

func (o *Occurrence) apply(e core.RecurrenceException) {
	if e.Action != core.ExceptionEdit {
		return
	}
	if e.OverrideAmount != nil {
		o.Amount = *e.OverrideAmount
		o.Overridden = true
	}
	if e.OverrideDescription != nil {
		o.Description = *e.OverrideDescription
		o.Overridden = true
	}
}
