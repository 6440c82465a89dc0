package services

import (
	"context"
	"errors"
	"testing"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/ports"
	"cashflow/internal/storage/memory"
)

type recordingPublisher struct {
	msgs []*amqp.LedgerChangeMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerChange(_ context.Context, msg *amqp.LedgerChangeMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func newLedger(t *testing.T) (*LedgerService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub)
	n := 0
	svc.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	return svc, store, pub
}

func TestLedgerService_Accounts(t *testing.T) {
	svc, _, pub := newLedger(t)
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, core.BankAccount{ID: "ignored", Name: "Checking", AccountType: core.Checking, Balance: core.MustMoney("100")})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if acc.ID != "id-1" {
		t.Errorf("CreateAccount() id = %s, want id-1", acc.ID)
	}

	if _, err := svc.CreateAccount(ctx, core.BankAccount{Name: "", AccountType: core.Checking}); !core.IsValidationError(err) {
		t.Errorf("CreateAccount() with empty name error = %v, want validation error", err)
	}

	if _, err := svc.UpdateAccount(ctx, "missing", acc); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("UpdateAccount() missing error = %v, want ErrNotFound", err)
	}

	acc.Balance = core.MustMoney("250")
	updated, err := svc.UpdateAccount(ctx, acc.ID, acc)
	if err != nil || !updated.Balance.Equal(core.MustMoney("250")) {
		t.Fatalf("UpdateAccount() = %+v, %v", updated, err)
	}

	if err := svc.DeleteAccount(ctx, acc.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	wantOps := []string{amqp.OpUpsert, amqp.OpUpsert, amqp.OpDelete}
	if len(pub.msgs) != len(wantOps) {
		t.Fatalf("published %d messages, want %d", len(pub.msgs), len(wantOps))
	}
	for i, op := range wantOps {
		if pub.msgs[i].Operation != op || pub.msgs[i].Entity != amqp.EntityAccount || pub.msgs[i].ID != acc.ID {
			t.Errorf("message %d = %+v", i, pub.msgs[i])
		}
	}
}

func TestLedgerService_SubscriptionCard(t *testing.T) {
	svc, store, _ := newLedger(t)
	ctx := context.Background()
	store.SaveCard(ctx, core.CreditCard{ID: "c1", Name: "Visa", ClosingDay: 3, DueDay: 30})

	sub := core.Transaction{
		Description: "Streaming", Amount: core.MustMoney("39.90"),
		Type: core.Expense, ExpenseType: core.Subscription, IsRecurring: true,
		SubscriptionCardID: "missing", SubscriptionBillingDay: 5,
	}
	if _, err := svc.CreateTransaction(ctx, sub); !errors.Is(err, core.ErrInvalidCard) {
		t.Errorf("CreateTransaction() with unknown card error = %v, want ErrInvalidCard", err)
	}

	sub.SubscriptionCardID = "c1"
	got, err := svc.CreateTransaction(ctx, sub)
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if got.SubscriptionCardDueDay != core.MaxRecurringDay {
		t.Errorf("due day = %d, want card due day capped at %d", got.SubscriptionCardDueDay, core.MaxRecurringDay)
	}
}

func TestLedgerService_Exceptions(t *testing.T) {
	svc, store, pub := newLedger(t)
	ctx := context.Background()
	store.SaveTransaction(ctx, core.Transaction{ID: "rent", Description: "Rent", Amount: core.MustMoney("1200"), Type: core.Expense, ExpenseType: core.Fixed, IsRecurring: true, Day: 20})
	store.SaveTransaction(ctx, core.Transaction{ID: "bonus", Description: "Bonus", Amount: core.MustMoney("300"), Type: core.Income, Date: core.NewDate(2025, 1, 5)})

	amount := core.MustMoney("1000")
	edit := core.RecurrenceException{TransactionID: "rent", Date: core.NewDate(2025, 2, 20), Action: core.ExceptionEdit, OverrideAmount: &amount}

	tests := []struct {
		name    string
		e       core.RecurrenceException
		wantErr error
	}{
		{"unknown transaction", core.RecurrenceException{TransactionID: "nope", Date: core.NewDate(2025, 1, 1), Action: core.ExceptionDelete}, ports.ErrNotFound},
		{"single transaction", core.RecurrenceException{TransactionID: "bonus", Date: core.NewDate(2025, 1, 5), Action: core.ExceptionDelete}, core.ErrInvalidException},
		{"edit without override", core.RecurrenceException{TransactionID: "rent", Date: core.NewDate(2025, 1, 20), Action: core.ExceptionEdit}, core.ErrInvalidException},
		{"valid edit", edit, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PutException(ctx, tt.e)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PutException() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	list, err := svc.ListExceptions(ctx, "rent")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListExceptions() = %+v, %v", list, err)
	}
	if err := svc.DeleteException(ctx, "rent", edit.Date); err != nil {
		t.Fatalf("DeleteException() error = %v", err)
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.Entity != amqp.EntityException || last.ID != "rent@2025-02-20" || last.Operation != amqp.OpDelete {
		t.Errorf("last message = %+v", last)
	}
}

func TestLedgerService_Invoices(t *testing.T) {
	svc, _, pub := newLedger(t)
	ctx := context.Background()
	jan, _ := core.ParseMonth("2025-01")

	if _, err := svc.PutInvoice(ctx, core.CreditCardInvoice{CreditCardID: "c1", Month: jan, Value: core.MustMoney("10")}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("PutInvoice() without card error = %v, want ErrNotFound", err)
	}

	card, err := svc.CreateCard(ctx, core.CreditCard{Name: "Visa", ClosingDay: 3, DueDay: 10})
	if err != nil {
		t.Fatal(err)
	}
	first, err := svc.PutInvoice(ctx, core.CreditCardInvoice{CreditCardID: card.ID, Month: jan, Value: core.MustMoney("100")})
	if err != nil {
		t.Fatalf("PutInvoice() error = %v", err)
	}
	second, err := svc.PutInvoice(ctx, core.CreditCardInvoice{CreditCardID: card.ID, Month: jan, Value: core.MustMoney("200")})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || !second.Value.Equal(core.MustMoney("200")) {
		t.Errorf("second upsert = %+v, want id %s and value 200", second, first.ID)
	}

	list, _ := svc.ListInvoices(ctx, card.ID)
	if len(list) != 1 {
		t.Errorf("ListInvoices() = %d invoices, want 1", len(list))
	}

	if err := svc.DeleteInvoice(ctx, card.ID, jan); err != nil {
		t.Fatal(err)
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.Entity != amqp.EntityInvoice || last.ID != first.ID || last.Operation != amqp.OpDelete {
		t.Errorf("last message = %+v", last)
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, &recordingPublisher{err: errors.New("broker down")})
	ctx := context.Background()

	card, err := svc.CreateCard(ctx, core.CreditCard{Name: "Visa", ClosingDay: 3, DueDay: 10})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if _, err := store.GetCard(ctx, card.ID); err != nil {
		t.Errorf("card not stored: %v", err)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	if _, err := svc.CreateAccount(context.Background(), core.BankAccount{Name: "Savings", AccountType: core.Savings}); err != nil {
		t.Errorf("CreateAccount() error = %v", err)
	}
}
