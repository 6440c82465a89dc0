package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/ports"
)

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
}

// LedgerService validates and stores ledger records, then publishes a change
// event for each successful write. Publishing is best effort.
type LedgerService struct {
	store     ports.Store
	publisher Publisher
	newID     func() string
}

// NewLedgerService creates a ledger service. publisher may be nil.
func NewLedgerService(store ports.Store, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]core.BankAccount, error) {
	return s.store.ListAccounts(ctx)
}

func (s *LedgerService) GetAccount(ctx context.Context, id string) (core.BankAccount, error) {
	return s.store.GetAccount(ctx, id)
}

// CreateAccount stores a new account under a fresh id.
func (s *LedgerService) CreateAccount(ctx context.Context, a core.BankAccount) (core.BankAccount, error) {
	a.ID = s.newID()
	return a, s.saveAccount(ctx, a)
}

// UpdateAccount replaces an existing account.
func (s *LedgerService) UpdateAccount(ctx context.Context, id string, a core.BankAccount) (core.BankAccount, error) {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return core.BankAccount{}, err
	}
	a.ID = id
	return a, s.saveAccount(ctx, a)
}

func (s *LedgerService) saveAccount(ctx context.Context, a core.BankAccount) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveAccount(ctx, a); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	s.publish(ctx, amqp.EntityAccount, a.ID, amqp.OpUpsert)
	return nil
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityAccount, id, amqp.OpDelete)
	return nil
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// CreateTransaction stores a new transaction under a fresh id.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = s.newID()
	return s.saveTransaction(ctx, tx)
}

// UpdateTransaction replaces an existing transaction. Its recurrence
// exceptions are kept.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	if _, err := s.store.GetTransaction(ctx, id); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id
	return s.saveTransaction(ctx, tx)
}

func (s *LedgerService) saveTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.IsSubscription() && tx.SubscriptionCardID != "" {
		card, err := s.store.GetCard(ctx, tx.SubscriptionCardID)
		if errors.Is(err, ports.ErrNotFound) {
			return core.Transaction{}, fmt.Errorf("%w: subscription card %s does not exist", core.ErrInvalidCard, tx.SubscriptionCardID)
		}
		if err != nil {
			return core.Transaction{}, err
		}
		if tx.SubscriptionCardDueDay == 0 {
			tx.SubscriptionCardDueDay = min(card.DueDay, core.MaxRecurringDay)
		}
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, amqp.EntityTransaction, tx.ID, amqp.OpUpsert)
	return tx, nil
}

// DeleteTransaction removes the transaction and its exceptions.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityTransaction, id, amqp.OpDelete)
	return nil
}

func (s *LedgerService) ListExceptions(ctx context.Context, txID string) ([]core.RecurrenceException, error) {
	if _, err := s.store.GetTransaction(ctx, txID); err != nil {
		return nil, err
	}
	return s.store.ListTransactionExceptions(ctx, txID)
}

// PutException edits or suppresses one occurrence of a recurring transaction.
func (s *LedgerService) PutException(ctx context.Context, e core.RecurrenceException) (core.RecurrenceException, error) {
	tx, err := s.store.GetTransaction(ctx, e.TransactionID)
	if err != nil {
		return core.RecurrenceException{}, err
	}
	if !tx.IsRecurring {
		return core.RecurrenceException{}, fmt.Errorf("%w: transaction %s is not recurring", core.ErrInvalidException, tx.ID)
	}
	if err := e.Validate(); err != nil {
		return core.RecurrenceException{}, err
	}
	if err := s.store.UpsertException(ctx, e); err != nil {
		return core.RecurrenceException{}, fmt.Errorf("save exception: %w", err)
	}
	s.publish(ctx, amqp.EntityException, exceptionRef(e.TransactionID, e.Date), amqp.OpUpsert)
	return e, nil
}

func (s *LedgerService) DeleteException(ctx context.Context, txID string, date core.Date) error {
	if err := s.store.DeleteException(ctx, txID, date); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityException, exceptionRef(txID, date), amqp.OpDelete)
	return nil
}

func exceptionRef(txID string, date core.Date) string {
	return txID + "@" + date.Key()
}

func (s *LedgerService) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	return s.store.ListCards(ctx)
}

func (s *LedgerService) GetCard(ctx context.Context, id string) (core.CreditCard, error) {
	return s.store.GetCard(ctx, id)
}

func (s *LedgerService) CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	c.ID = s.newID()
	return c, s.saveCard(ctx, c)
}

func (s *LedgerService) UpdateCard(ctx context.Context, id string, c core.CreditCard) (core.CreditCard, error) {
	if _, err := s.store.GetCard(ctx, id); err != nil {
		return core.CreditCard{}, err
	}
	c.ID = id
	return c, s.saveCard(ctx, c)
}

func (s *LedgerService) saveCard(ctx context.Context, c core.CreditCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveCard(ctx, c); err != nil {
		return fmt.Errorf("save credit card: %w", err)
	}
	s.publish(ctx, amqp.EntityCreditCard, c.ID, amqp.OpUpsert)
	return nil
}

// DeleteCard removes the card and its invoices.
func (s *LedgerService) DeleteCard(ctx context.Context, id string) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityCreditCard, id, amqp.OpDelete)
	return nil
}

func (s *LedgerService) ListInvoices(ctx context.Context, cardID string) ([]core.CreditCardInvoice, error) {
	if _, err := s.store.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.ListCardInvoices(ctx, cardID)
}

// PutInvoice sets the statement value of a card for one month, creating the
// invoice when none exists.
func (s *LedgerService) PutInvoice(ctx context.Context, inv core.CreditCardInvoice) (core.CreditCardInvoice, error) {
	if err := inv.Validate(); err != nil {
		return core.CreditCardInvoice{}, err
	}
	if _, err := s.store.GetCard(ctx, inv.CreditCardID); err != nil {
		return core.CreditCardInvoice{}, err
	}
	if inv.ID == "" {
		inv.ID = s.newID()
	}
	stored, err := s.store.UpsertInvoice(ctx, inv)
	if err != nil {
		return core.CreditCardInvoice{}, fmt.Errorf("save invoice: %w", err)
	}
	s.publish(ctx, amqp.EntityInvoice, stored.ID, amqp.OpUpsert)
	return stored, nil
}

func (s *LedgerService) DeleteInvoice(ctx context.Context, cardID string, month core.Month) error {
	inv, err := s.store.GetInvoice(ctx, cardID, month)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInvoice(ctx, cardID, month); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityInvoice, inv.ID, amqp.OpDelete)
	return nil
}

func (s *LedgerService) publish(ctx context.Context, entity, id, op string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChange(ctx, amqp.NewLedgerChangeMessage(entity, id, op)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"entity", entity,
			"id", id,
			"operation", op,
			"error", err)
	}
}
