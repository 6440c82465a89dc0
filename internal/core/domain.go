package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Fixed        ExpenseType = "fixed"
	Variable     ExpenseType = "variable"
	Subscription ExpenseType = "subscription"

	ExceptionEdit   ExceptionAction = "edit"
	ExceptionDelete ExceptionAction = "delete"

	Checking AccountType = "checking"
	Savings  AccountType = "savings"

	// MaxRecurringDay caps recurring days so every month contains them.
	MaxRecurringDay = 28

	maxDescriptionLen = 200
)

type (
	TransactionType string
	ExpenseType     string
	ExceptionAction string
	AccountType     string

	// Transaction is a single or monthly-recurring income/expense definition.
	// Exactly one of Day (recurring) or Date (single) is populated.
	Transaction struct {
		ID                     string          `json:"id"`
		Description            string          `json:"description"`
		Amount                 Money           `json:"amount"`
		Type                   TransactionType `json:"type"`
		ExpenseType            ExpenseType     `json:"expense_type,omitempty"`
		IsRecurring            bool            `json:"is_recurring"`
		Day                    int             `json:"day,omitempty"`
		Date                   Date            `json:"date"`
		RecurrenceEndDate      Date            `json:"recurrence_end_date"`
		SubscriptionCardID     string          `json:"subscription_card,omitempty"`
		SubscriptionBillingDay int             `json:"subscription_billing_day,omitempty"`
		SubscriptionCardDueDay int             `json:"subscription_card_due_day,omitempty"`
	}

	// RecurrenceException overrides or suppresses one occurrence of a
	// recurring transaction without touching the base record.
	RecurrenceException struct {
		TransactionID       string          `json:"transaction_id"`
		Date                Date            `json:"date"`
		Action              ExceptionAction `json:"action"`
		OverrideAmount      *Money          `json:"override_amount,omitempty"`
		OverrideDescription *string         `json:"override_description,omitempty"`
	}

	// BankAccount holds a point-in-time balance snapshot.
	BankAccount struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Bank        string      `json:"bank"`
		AccountType AccountType `json:"account_type"`
		Balance     Money       `json:"balance"`
		BalanceDate Date        `json:"balance_date"`
	}

	CreditCard struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		BankID     string `json:"bank_id"`
		ClosingDay int    `json:"closing_day"`
		DueDay     int    `json:"due_day"`
		Color      string `json:"color"`
	}

	// CreditCardInvoice is the statement value of a card for one month.
	// At most one exists per (card, month).
	CreditCardInvoice struct {
		ID           string `json:"id"`
		CreditCardID string `json:"credit_card_id"`
		Month        Month  `json:"month"`
		Value        Money  `json:"value"`
	}

	// ForecastSnapshot is a recorded month-end projection.
	ForecastSnapshot struct {
		ID               string    `json:"id"`
		TakenAt          time.Time `json:"taken_at"`
		TargetDate       Date      `json:"target_date"`
		CurrentBalance   Money     `json:"current_balance"`
		ProjectedBalance Money     `json:"projected_balance"`
		Income           Money     `json:"income"`
		Expense          Money     `json:"expense"`
		Invoices         Money     `json:"invoices"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidExpenseType = errors.New("invalid expense type")
	ErrInvalidRecurrence  = errors.New("invalid recurrence")
	ErrInvalidException   = errors.New("invalid recurrence exception")
	ErrInvalidAccount     = errors.New("invalid bank account")
	ErrInvalidCard        = errors.New("invalid credit card")
	ErrEmptyName          = errors.New("empty name")
)

// IsValidationError reports whether err comes from input validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDay, ErrInvalidMonth, ErrInvalidDate, ErrInvalidAmount,
		ErrEmptyDescription, ErrDescriptionTooLong, ErrInvalidType,
		ErrInvalidExpenseType, ErrInvalidRecurrence, ErrInvalidException,
		ErrInvalidAccount, ErrInvalidCard, ErrEmptyName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsSubscription reports whether the transaction is a subscription expense.
func (t Transaction) IsSubscription() bool {
	return t.Type == Expense && t.ExpenseType == Subscription
}

// EffectiveDay is the day of month an occurrence lands on: the card due day
// for subscriptions, Day otherwise.
func (t Transaction) EffectiveDay() int {
	if t.IsSubscription() {
		return t.SubscriptionCardDueDay
	}
	return t.Day
}

func validRecurringDay(day int) bool {
	return day >= 1 && day <= MaxRecurringDay
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}

	switch t.Type {
	case Income:
		if t.ExpenseType != "" {
			return fmt.Errorf("%w: income cannot have an expense type", ErrInvalidExpenseType)
		}
	case Expense:
		switch t.ExpenseType {
		case Fixed, Variable, Subscription:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidExpenseType, t.ExpenseType)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}

	if t.IsSubscription() {
		if !t.IsRecurring {
			return fmt.Errorf("%w: subscriptions are always recurring", ErrInvalidRecurrence)
		}
		if strings.TrimSpace(t.SubscriptionCardID) == "" {
			return fmt.Errorf("%w: subscription requires a card", ErrInvalidRecurrence)
		}
		if !validRecurringDay(t.SubscriptionBillingDay) {
			return fmt.Errorf("%w: billing day %d", ErrInvalidDay, t.SubscriptionBillingDay)
		}
		if !validRecurringDay(t.SubscriptionCardDueDay) {
			return fmt.Errorf("%w: card due day %d", ErrInvalidDay, t.SubscriptionCardDueDay)
		}
	} else if t.SubscriptionCardID != "" || t.SubscriptionBillingDay != 0 || t.SubscriptionCardDueDay != 0 {
		return fmt.Errorf("%w: subscription fields on a non-subscription", ErrInvalidRecurrence)
	}

	if t.IsRecurring {
		if !t.Date.IsZero() {
			return fmt.Errorf("%w: recurring transaction cannot have a date", ErrInvalidRecurrence)
		}
		// Subscriptions land on the card due day; Day is optional for them.
		if !t.IsSubscription() || t.Day != 0 {
			if !validRecurringDay(t.Day) {
				return fmt.Errorf("%w: day %d must be between 1 and %d", ErrInvalidDay, t.Day, MaxRecurringDay)
			}
		}
		if !t.RecurrenceEndDate.IsZero() {
			if err := t.RecurrenceEndDate.Validate(); err != nil {
				return fmt.Errorf("%w: end date: %v", ErrInvalidDate, err)
			}
		}
		return nil
	}

	if t.Day != 0 {
		return fmt.Errorf("%w: single transaction cannot have a day", ErrInvalidRecurrence)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: single transaction requires a date", ErrInvalidDate)
	}
	if !t.RecurrenceEndDate.IsZero() {
		return fmt.Errorf("%w: end date on a single transaction", ErrInvalidRecurrence)
	}
	return nil
}

func (e RecurrenceException) Validate() error {
	if strings.TrimSpace(e.TransactionID) == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidException)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidDate)
	}
	switch e.Action {
	case ExceptionDelete:
		return nil
	case ExceptionEdit:
		if e.OverrideAmount == nil && e.OverrideDescription == nil {
			return fmt.Errorf("%w: edit needs an override", ErrInvalidException)
		}
		if e.OverrideAmount != nil {
			if err := e.OverrideAmount.Validate(); err != nil {
				return err
			}
		}
		if e.OverrideDescription != nil {
			if err := validateDescription(*e.OverrideDescription); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidException, e.Action)
	}
}

func (a BankAccount) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	switch a.AccountType {
	case Checking, Savings:
	default:
		return fmt.Errorf("%w: account type %q", ErrInvalidAccount, a.AccountType)
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return fmt.Errorf("%w: closing day %d", ErrInvalidDay, c.ClosingDay)
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return fmt.Errorf("%w: due day %d", ErrInvalidDay, c.DueDay)
	}
	return nil
}

func (i CreditCardInvoice) Validate() error {
	if strings.TrimSpace(i.CreditCardID) == "" {
		return fmt.Errorf("%w: missing card", ErrInvalidCard)
	}
	if i.Month.IsZero() || i.Month.Month < 1 || i.Month.Month > 12 {
		return ErrInvalidMonth
	}
	return i.Value.Validate()
}
