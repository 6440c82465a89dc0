package forecast

import (
	"testing"

	"cashflow/internal/core"
)

func occ(t *testing.T, id string, typ core.TransactionType, et core.ExpenseType, date, amount string) Occurrence {
	t.Helper()
	return Occurrence{
		ID:          id,
		SourceID:    id,
		Description: id,
		Amount:      core.MustMoney(amount),
		Type:        typ,
		ExpenseType: et,
		Date:        mustDate(t, date),
	}
}

func TestAggregate(t *testing.T) {
	occs := []Occurrence{
		occ(t, "salary", core.Income, "", "2025-01-05", "5000"),
		occ(t, "freelance", core.Income, "", "2025-01-20", "750.50"),
		occ(t, "rent", core.Expense, core.Fixed, "2025-01-10", "1200"),
		occ(t, "market", core.Expense, core.Variable, "2025-01-12", "430.25"),
		occ(t, "legacy", core.Expense, "", "2025-01-13", "19.75"),
		occ(t, "video", core.Expense, core.Subscription, "2025-01-20", "39.90"),
	}
	invoices := []InvoiceEvent{
		{ID: "inv", Amount: core.MustMoney("800"), DueDate: mustDate(t, "2025-01-10")},
	}

	got := Aggregate(occs, invoices)

	checks := []struct {
		name string
		got  core.Money
		want string
	}{
		{"income", got.Income, "5750.50"},
		{"fixed", got.FixedExpense, "1200.00"},
		{"variable", got.VariableExpense, "450.00"},
		{"subscription", got.SubscriptionExpense, "39.90"},
		{"expense", got.Expense, "1689.90"},
		{"invoices", got.Invoices, "800.00"},
		{"net", got.Net, "3260.60"},
	}
	for _, c := range checks {
		if c.got.String() != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}

	want := BucketCounts{Income: 2, Fixed: 1, Variable: 2, Subscription: 1, Invoices: 1}
	if got.Counts != want {
		t.Errorf("Counts = %+v, want %+v", got.Counts, want)
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, nil)
	if !got.Net.IsZero() || !got.Income.IsZero() || got.Counts != (BucketCounts{}) {
		t.Errorf("Aggregate(nil, nil) = %+v, want zero totals", got)
	}
}

func TestTimeline_Ordering(t *testing.T) {
	occs := []Occurrence{
		occ(t, "small", core.Expense, core.Variable, "2025-01-10", "100"),
		occ(t, "later", core.Income, "", "2025-01-11", "1"),
		occ(t, "big", core.Expense, core.Fixed, "2025-01-10", "200"),
		occ(t, "salary", core.Income, "", "2025-01-10", "10"),
		occ(t, "b-tie", core.Expense, core.Variable, "2025-01-10", "50"),
		occ(t, "a-tie", core.Expense, core.Variable, "2025-01-10", "50"),
	}
	invoices := []InvoiceEvent{
		{ID: "inv", CardName: "Visa", Month: mustMonth(t, "2025-01"), Amount: core.MustMoney("5000"), DueDate: mustDate(t, "2025-01-10")},
	}

	entries := Timeline(occs, invoices)

	var got []string
	for _, e := range entries {
		got = append(got, e.ID)
	}
	want := []string{"salary", "big", "small", "a-tie", "b-tie", "inv", "later"}
	if !equalStrings(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if entries[5].Kind != EntryInvoice || entries[5].Description != "Visa invoice 2025-01" {
		t.Errorf("invoice entry = %+v", entries[5])
	}
}

func TestTimeline_SubscriptionOnDueDay(t *testing.T) {
	l := Ledger{
		Transactions: []core.Transaction{{
			ID: "sub", Description: "Streaming", Amount: core.MustMoney("39.90"),
			Type: core.Expense, ExpenseType: core.Subscription, IsRecurring: true,
			SubscriptionCardID: "card", SubscriptionBillingDay: 3, SubscriptionCardDueDay: 20,
		}},
	}
	occs, invoices, warnings := Collect(l, window(t, "2025-02-01", "2025-02-28"))
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v", warnings)
	}
	entries := Timeline(occs, invoices)
	if len(entries) != 1 || entries[0].Date.Key() != "2025-02-20" {
		t.Errorf("entries = %+v, want one entry on 2025-02-20", entries)
	}
}

func TestCollect_ExcludesIntegrityFailures(t *testing.T) {
	l := Ledger{
		Transactions: []core.Transaction{
			monthly("ok", 5, "10"),
			monthly("broken", 0, "10"),
		},
	}
	occs, _, warnings := Collect(l, window(t, "2025-01-01", "2025-01-31"))
	if len(occs) != 1 || occs[0].SourceID != "ok" {
		t.Errorf("occs = %+v, want only ok", occs)
	}
	if len(warnings) != 1 || warnings[0].Code != WarnIntegrity || warnings[0].SourceID != "broken" {
		t.Errorf("warnings = %+v", warnings)
	}
}

func TestPeriodTotals_MergeOfAdjacentWindows(t *testing.T) {
	l := Ledger{
		Transactions: []core.Transaction{
			{ID: "salary", Description: "Salary", Amount: core.MustMoney("5000"), Type: core.Income, IsRecurring: true, Day: 5},
			monthly("rent", 15, "1200"),
			{ID: "tv", Description: "TV", Amount: core.MustMoney("2999.99"), Type: core.Expense, ExpenseType: core.Variable, Date: mustDate(t, "2025-02-20")},
		},
		Cards:    []core.CreditCard{{ID: "visa", Name: "Visa", ClosingDay: 1, DueDay: 10}},
		Invoices: []core.CreditCardInvoice{{ID: "i", CreditCardID: "visa", Month: mustMonth(t, "2025-02"), Value: core.MustMoney("321.09")}},
	}

	totals := func(w Window) PeriodTotals {
		occs, invs, _ := Collect(l, w)
		return Aggregate(occs, invs)
	}

	whole := totals(window(t, "2025-01-01", "2025-03-31"))
	merged := totals(window(t, "2025-01-01", "2025-02-10")).Merge(totals(window(t, "2025-02-11", "2025-03-31")))

	if !whole.Net.Equal(merged.Net) || !whole.Invoices.Equal(merged.Invoices) || whole.Counts != merged.Counts {
		t.Errorf("whole = %+v\nmerged = %+v", whole, merged)
	}
}
