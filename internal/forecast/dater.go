// This file implements the Strategy Pattern for occurrence dating.
// Each schedule kind (single, monthly, subscription) has its own dater that
// validates the schedule fields and yields raw occurrence dates in a window.

package forecast

import (
	"fmt"
	"iter"

	"cashflow/internal/core"
)

// ScheduleKind classifies how a transaction repeats.
type ScheduleKind string

const (
	KindSingle       ScheduleKind = "single"
	KindMonthly      ScheduleKind = "monthly"
	KindSubscription ScheduleKind = "subscription"
)

// KindOf returns the schedule kind of tx.
func KindOf(tx core.Transaction) ScheduleKind {
	switch {
	case tx.IsSubscription():
		return KindSubscription
	case tx.IsRecurring:
		return KindMonthly
	default:
		return KindSingle
	}
}

// OccurrenceDater is the strategy interface for turning a schedule into dates.
type OccurrenceDater interface {
	// Check reports missing or out-of-range schedule fields.
	Check(tx core.Transaction) error
	// Dates yields the raw occurrence dates of tx inside w in ascending order,
	// before recurrence exceptions are applied.
	Dates(tx core.Transaction, w Window) iter.Seq[core.Date]
}

// SingleDater dates a one-off transaction.
type SingleDater struct{}

func (SingleDater) Check(tx core.Transaction) error {
	if tx.Date.IsZero() {
		return fmt.Errorf("single transaction has no date")
	}
	return nil
}

func (SingleDater) Dates(tx core.Transaction, w Window) iter.Seq[core.Date] {
	return func(yield func(core.Date) bool) {
		if w.Contains(tx.Date) {
			yield(tx.Date)
		}
	}
}

// MonthlyDater dates a recurring transaction on its day of the month.
type MonthlyDater struct{}

func (MonthlyDater) Check(tx core.Transaction) error {
	return checkDay("day", tx.Day)
}

func (MonthlyDater) Dates(tx core.Transaction, w Window) iter.Seq[core.Date] {
	return monthlyDates(tx.Day, tx.RecurrenceEndDate, w)
}

// SubscriptionDater dates a subscription on the card due day, the day the
// charge shows up on the statement. The billing day only matters for invoice
// breakdowns.
type SubscriptionDater struct{}

func (SubscriptionDater) Check(tx core.Transaction) error {
	if err := checkDay("subscription_billing_day", tx.SubscriptionBillingDay); err != nil {
		return err
	}
	return checkDay("subscription_card_due_day", tx.SubscriptionCardDueDay)
}

func (SubscriptionDater) Dates(tx core.Transaction, w Window) iter.Seq[core.Date] {
	return monthlyDates(tx.SubscriptionCardDueDay, tx.RecurrenceEndDate, w)
}

func checkDay(field string, day int) error {
	if day == 0 {
		return fmt.Errorf("recurring transaction has no %s", field)
	}
	if day < 1 || day > core.MaxRecurringDay {
		return fmt.Errorf("%s %d outside 1..%d", field, day, core.MaxRecurringDay)
	}
	return nil
}

// monthlyDates walks month by month from the window start and stops once the
// composed date passes the window end or the inclusive recurrence end date.
func monthlyDates(day int, endDate core.Date, w Window) iter.Seq[core.Date] {
	return func(yield func(core.Date) bool) {
		if w.Empty() {
			return
		}
		for m := core.MonthOf(w.Start); ; m = m.Add(1) {
			d := m.Day(day)
			if d.After(w.End.Time) {
				return
			}
			if !endDate.IsZero() && d.After(endDate.Time) {
				return
			}
			if d.Before(w.Start.Time) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// daters maps schedule kinds to their strategies.
var daters = map[ScheduleKind]OccurrenceDater{
	KindSingle:       SingleDater{},
	KindMonthly:      MonthlyDater{},
	KindSubscription: SubscriptionDater{},
}

// GetDater returns the dater for a schedule kind.
func GetDater(kind ScheduleKind) (OccurrenceDater, error) {
	d, ok := daters[kind]
	if !ok {
		return nil, fmt.Errorf("unknown schedule kind: %s", kind)
	}
	return d, nil
}
