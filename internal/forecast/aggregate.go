package forecast

import (
	"slices"
	"strings"

	"cashflow/internal/core"
)

// BucketCounts counts occurrences per bucket.
type BucketCounts struct {
	Income       int `json:"income"`
	Fixed        int `json:"fixed"`
	Variable     int `json:"variable"`
	Subscription int `json:"subscription"`
	Invoices     int `json:"invoices"`
}

// PeriodTotals sums occurrences and invoices over a window.
// Expense is the sum of the three expense buckets; invoices are kept apart.
type PeriodTotals struct {
	Income              core.Money   `json:"income"`
	Expense             core.Money   `json:"expense"`
	FixedExpense        core.Money   `json:"fixed_expense"`
	VariableExpense     core.Money   `json:"variable_expense"`
	SubscriptionExpense core.Money   `json:"subscription_expense"`
	Invoices            core.Money   `json:"invoices"`
	Net                 core.Money   `json:"net"`
	Counts              BucketCounts `json:"counts"`
}

// Aggregate buckets occurrences by type and expense type and adds invoice
// values. Expenses without a known expense type count as variable.
func Aggregate(occs []Occurrence, invoices []InvoiceEvent) PeriodTotals {
	var t PeriodTotals
	for _, o := range occs {
		switch o.Type {
		case core.Income:
			t.Income = t.Income.Add(o.Amount)
			t.Counts.Income++
		case core.Expense:
			switch o.ExpenseType {
			case core.Fixed:
				t.FixedExpense = t.FixedExpense.Add(o.Amount)
				t.Counts.Fixed++
			case core.Subscription:
				t.SubscriptionExpense = t.SubscriptionExpense.Add(o.Amount)
				t.Counts.Subscription++
			default:
				t.VariableExpense = t.VariableExpense.Add(o.Amount)
				t.Counts.Variable++
			}
		}
	}
	for _, inv := range invoices {
		t.Invoices = t.Invoices.Add(inv.Amount)
		t.Counts.Invoices++
	}
	t.Expense = t.FixedExpense.Add(t.VariableExpense).Add(t.SubscriptionExpense)
	t.Net = t.Income.Sub(t.Expense).Sub(t.Invoices)
	return t
}

// Merge adds two period totals. Aggregating adjacent windows and merging
// equals aggregating their union.
func (t PeriodTotals) Merge(o PeriodTotals) PeriodTotals {
	return PeriodTotals{
		Income:              t.Income.Add(o.Income),
		Expense:             t.Expense.Add(o.Expense),
		FixedExpense:        t.FixedExpense.Add(o.FixedExpense),
		VariableExpense:     t.VariableExpense.Add(o.VariableExpense),
		SubscriptionExpense: t.SubscriptionExpense.Add(o.SubscriptionExpense),
		Invoices:            t.Invoices.Add(o.Invoices),
		Net:                 t.Net.Add(o.Net),
		Counts: BucketCounts{
			Income:       t.Counts.Income + o.Counts.Income,
			Fixed:        t.Counts.Fixed + o.Counts.Fixed,
			Variable:     t.Counts.Variable + o.Counts.Variable,
			Subscription: t.Counts.Subscription + o.Counts.Subscription,
			Invoices:     t.Counts.Invoices + o.Counts.Invoices,
		},
	}
}

type EntryKind string

const (
	EntryIncome  EntryKind = "income"
	EntryExpense EntryKind = "expense"
	EntryInvoice EntryKind = "invoice"
)

var entryRank = map[EntryKind]int{EntryIncome: 0, EntryExpense: 1, EntryInvoice: 2}

// TimelineEntry is one dated row of the timeline: a transaction occurrence or
// an invoice due.
type TimelineEntry struct {
	ID          string           `json:"id"`
	SourceID    string           `json:"source_id"`
	Kind        EntryKind        `json:"kind"`
	ExpenseType core.ExpenseType `json:"expense_type,omitempty"`
	Date        core.Date        `json:"date"`
	Description string           `json:"description"`
	Amount      core.Money       `json:"amount"`
	IsRecurring bool             `json:"is_recurring"`
	Overridden  bool             `json:"overridden"`
	CardID      string           `json:"credit_card_id,omitempty"`
}

// Timeline merges occurrences and invoices into one list ordered by date;
// within a day income precedes expenses precedes invoices, larger amounts
// first, then by id.
func Timeline(occs []Occurrence, invoices []InvoiceEvent) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(occs)+len(invoices))
	for _, o := range occs {
		kind := EntryExpense
		if o.Type == core.Income {
			kind = EntryIncome
		}
		entries = append(entries, TimelineEntry{
			ID:          o.ID,
			SourceID:    o.SourceID,
			Kind:        kind,
			ExpenseType: o.ExpenseType,
			Date:        o.Date,
			Description: o.Description,
			Amount:      o.Amount,
			IsRecurring: o.IsRecurring,
			Overridden:  o.Overridden,
			CardID:      o.SubscriptionCardID,
		})
	}
	for _, inv := range invoices {
		entries = append(entries, TimelineEntry{
			ID:          inv.ID,
			SourceID:    inv.ID,
			Kind:        EntryInvoice,
			Date:        inv.DueDate,
			Description: inv.CardName + " invoice " + inv.Month.String(),
			Amount:      inv.Amount,
			CardID:      inv.CardID,
		})
	}

	slices.SortStableFunc(entries, func(a, b TimelineEntry) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if c := entryRank[a.Kind] - entryRank[b.Kind]; c != 0 {
			return c
		}
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return entries
}

// Collect expands every transaction of l inside w and maps the invoices due
// in w. Records that fail integrity checks are excluded and reported.
func Collect(l Ledger, w Window) ([]Occurrence, []InvoiceEvent, []Warning) {
	ex := NewExceptionIndex(l.Exceptions)

	var (
		occs     []Occurrence
		warnings []Warning
	)
	for _, tx := range l.Transactions {
		seq, err := Generate(tx, w, ex)
		if err != nil {
			warnings = append(warnings, Warning{Code: WarnIntegrity, SourceID: tx.ID, Message: err.Error()})
			continue
		}
		for occ := range seq {
			occs = append(occs, occ)
		}
	}

	invoices, invWarnings := InvoiceEvents(l.Invoices, l.Cards, w)
	return occs, invoices, append(warnings, invWarnings...)
}
