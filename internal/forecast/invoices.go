package forecast

import (
	"fmt"
	"slices"
	"strings"

	"cashflow/internal/core"
)

// InvoiceEvent is a card invoice placed on its due date.
type InvoiceEvent struct {
	ID          string     `json:"id"`
	CardID      string     `json:"credit_card_id"`
	CardName    string     `json:"credit_card_name"`
	Month       core.Month `json:"month"`
	DueDate     core.Date  `json:"due_date"`
	ClosingDate core.Date  `json:"closing_date"`
	Amount      core.Money `json:"amount"`
}

// DueDate is the day the invoice must be paid: the card due day in the
// invoice month, clamped to the month's last day.
func DueDate(inv core.CreditCardInvoice, card core.CreditCard) core.Date {
	return inv.Month.Day(card.DueDay)
}

// ClosingDate is the statement closing day in the invoice month.
func ClosingDate(inv core.CreditCardInvoice, card core.CreditCard) core.Date {
	return inv.Month.Day(card.ClosingDay)
}

// InvoiceEvents maps invoices to dated events and keeps those due inside w.
// Invoices referencing an unknown card are skipped with a warning.
func InvoiceEvents(invoices []core.CreditCardInvoice, cards []core.CreditCard, w Window) ([]InvoiceEvent, []Warning) {
	byID := make(map[string]core.CreditCard, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	var (
		events   []InvoiceEvent
		warnings []Warning
	)
	for _, inv := range invoices {
		card, ok := byID[inv.CreditCardID]
		if !ok {
			warnings = append(warnings, Warning{
				Code:     WarnUnknownCard,
				SourceID: inv.ID,
				Message:  fmt.Sprintf("invoice %s references unknown card %s", inv.Month, inv.CreditCardID),
			})
			continue
		}
		ev := newInvoiceEvent(inv, card)
		if !w.Contains(ev.DueDate) {
			continue
		}
		events = append(events, ev)
	}
	return events, warnings
}

func newInvoiceEvent(inv core.CreditCardInvoice, card core.CreditCard) InvoiceEvent {
	return InvoiceEvent{
		ID:          inv.ID,
		CardID:      card.ID,
		CardName:    card.Name,
		Month:       inv.Month,
		DueDate:     DueDate(inv, card),
		ClosingDate: ClosingDate(inv, card),
		Amount:      inv.Value,
	}
}

// SubscriptionCharge is a subscription billed to a card in one invoice month.
type SubscriptionCharge struct {
	TransactionID string     `json:"transaction_id"`
	Description   string     `json:"description"`
	Amount        core.Money `json:"amount"`
	BillingDate   core.Date  `json:"billing_date"`
}

// InvoiceBreakdown splits the subscriptions of a card into those already
// charged on the invoice (billed on or before closing) and those pending.
type InvoiceBreakdown struct {
	Invoice      InvoiceEvent         `json:"invoice"`
	Charged      []SubscriptionCharge `json:"charged"`
	Pending      []SubscriptionCharge `json:"pending"`
	ChargedTotal core.Money           `json:"charged_total"`
	PendingTotal core.Money           `json:"pending_total"`
}

// BreakdownInvoice classifies the subscriptions of card for the invoice month.
// Exceptions on the subscription's occurrence in that month (dated on the
// card due day) are honored: deleted ones are left out, edits apply.
func BreakdownInvoice(inv core.CreditCardInvoice, card core.CreditCard, txs []core.Transaction, ex ExceptionIndex) InvoiceBreakdown {
	b := InvoiceBreakdown{
		Invoice: newInvoiceEvent(inv, card),
		Charged: []SubscriptionCharge{},
		Pending: []SubscriptionCharge{},
	}
	closing := b.Invoice.ClosingDate

	for _, tx := range txs {
		if !tx.IsSubscription() || tx.SubscriptionCardID != card.ID {
			continue
		}
		if (SubscriptionDater{}).Check(tx) != nil {
			continue
		}
		billing := inv.Month.Day(tx.SubscriptionBillingDay)
		if !tx.RecurrenceEndDate.IsZero() && billing.After(tx.RecurrenceEndDate.Time) {
			continue
		}

		charge := SubscriptionCharge{
			TransactionID: tx.ID,
			Description:   tx.Description,
			Amount:        tx.Amount,
			BillingDate:   billing,
		}
		if e, ok := ex.Lookup(tx.ID, inv.Month.Day(tx.SubscriptionCardDueDay)); ok {
			if e.Action == core.ExceptionDelete {
				continue
			}
			if e.OverrideAmount != nil {
				charge.Amount = *e.OverrideAmount
			}
			if e.OverrideDescription != nil {
				charge.Description = *e.OverrideDescription
			}
		}

		if billing.After(closing.Time) {
			b.Pending = append(b.Pending, charge)
			b.PendingTotal = b.PendingTotal.Add(charge.Amount)
		} else {
			b.Charged = append(b.Charged, charge)
			b.ChargedTotal = b.ChargedTotal.Add(charge.Amount)
		}
	}

	byBilling := func(x, y SubscriptionCharge) int {
		if c := x.BillingDate.Compare(y.BillingDate.Time); c != 0 {
			return c
		}
		return strings.Compare(x.TransactionID, y.TransactionID)
	}
	slices.SortStableFunc(b.Charged, byBilling)
	slices.SortStableFunc(b.Pending, byBilling)
	return b
}
