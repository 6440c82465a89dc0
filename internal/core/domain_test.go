package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func recurringIncome() Transaction {
	return Transaction{
		ID:          "salary",
		Description: "Salary",
		Amount:      MustMoney("5000"),
		Type:        Income,
		IsRecurring: true,
		Day:         5,
	}
}

func subscription() Transaction {
	return Transaction{
		ID:                     "streaming",
		Description:            "Streaming",
		Amount:                 MustMoney("39.90"),
		Type:                   Expense,
		ExpenseType:            Subscription,
		IsRecurring:            true,
		SubscriptionCardID:     "card-1",
		SubscriptionBillingDay: 3,
		SubscriptionCardDueDay: 20,
	}
}

func TestTransactionValidate(t *testing.T) {
	good := []Transaction{
		recurringIncome(),
		subscription(),
		{Description: "Laptop", Amount: MustMoney("3000"), Type: Expense, ExpenseType: Variable, Date: NewDate(2025, 1, 10)},
		{Description: "Rent", Amount: MustMoney("1200"), Type: Expense, ExpenseType: Fixed, IsRecurring: true, Day: 15, RecurrenceEndDate: NewDate(2025, 6, 10)},
	}
	for i, tx := range good {
		if err := tx.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"empty description", func(tx *Transaction) { tx.Description = " " }, ErrEmptyDescription},
		{"negative amount", func(tx *Transaction) { tx.Amount = MustMoney("-1") }, ErrInvalidAmount},
		{"unknown type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"income with expense type", func(tx *Transaction) { tx.ExpenseType = Fixed }, ErrInvalidExpenseType},
		{"day above 28", func(tx *Transaction) { tx.Day = 30 }, ErrInvalidDay},
		{"recurring without day", func(tx *Transaction) { tx.Day = 0 }, ErrInvalidDay},
		{"recurring with date", func(tx *Transaction) { tx.Date = NewDate(2025, 1, 1) }, ErrInvalidRecurrence},
		{"single without date", func(tx *Transaction) { tx.IsRecurring = false; tx.Day = 0 }, ErrInvalidDate},
		{"single with day", func(tx *Transaction) { tx.IsRecurring = false; tx.Date = NewDate(2025, 1, 1) }, ErrInvalidRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := recurringIncome()
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscriptionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"not recurring", func(tx *Transaction) { tx.IsRecurring = false; tx.Date = NewDate(2025, 1, 1) }, ErrInvalidRecurrence},
		{"missing card", func(tx *Transaction) { tx.SubscriptionCardID = "" }, ErrInvalidRecurrence},
		{"billing day out of range", func(tx *Transaction) { tx.SubscriptionBillingDay = 29 }, ErrInvalidDay},
		{"due day missing", func(tx *Transaction) { tx.SubscriptionCardDueDay = 0 }, ErrInvalidDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := subscription()
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	if got := subscription().EffectiveDay(); got != 20 {
		t.Fatalf("EffectiveDay() = %d, want card due day 20", got)
	}
}

func TestRecurrenceExceptionValidate(t *testing.T) {
	amount := MustMoney("10")
	desc := "Adjusted"
	good := []RecurrenceException{
		{TransactionID: "t", Date: NewDate(2025, 1, 5), Action: ExceptionDelete},
		{TransactionID: "t", Date: NewDate(2025, 1, 5), Action: ExceptionEdit, OverrideAmount: &amount},
		{TransactionID: "t", Date: NewDate(2025, 1, 5), Action: ExceptionEdit, OverrideDescription: &desc},
	}
	for i, e := range good {
		if err := e.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}
	bads := []RecurrenceException{
		{Date: NewDate(2025, 1, 5), Action: ExceptionDelete},
		{TransactionID: "t", Action: ExceptionDelete},
		{TransactionID: "t", Date: NewDate(2025, 1, 5), Action: ExceptionEdit},
		{TransactionID: "t", Date: NewDate(2025, 1, 5), Action: "skip"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAccountCardInvoiceValidate(t *testing.T) {
	if err := (BankAccount{Name: "Main", AccountType: Checking, Balance: MustMoney("-50")}).Validate(); err != nil {
		t.Fatalf("overdrawn checking account should validate: %v", err)
	}
	if err := (BankAccount{Name: "Main", AccountType: "brokerage"}).Validate(); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
	if err := (CreditCard{Name: "Gold", ClosingDay: 25, DueDay: 31}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (CreditCard{Name: "Gold", ClosingDay: 0, DueDay: 5}).Validate(); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	inv := CreditCardInvoice{CreditCardID: "c", Month: Month{Year: 2025, Month: time.March}, Value: MustMoney("-1")}
	if err := inv.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if !IsValidationError(inv.Validate()) {
		t.Fatal("IsValidationError should recognise invoice errors")
	}
}
