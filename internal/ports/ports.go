// Package ports declares the storage boundary of the service. Every backend
// (memory, sqlite, postgres) implements Store.
package ports

import (
	"context"
	"errors"

	"cashflow/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.BankAccount, error)
		GetAccount(ctx context.Context, id string) (core.BankAccount, error)
		// SaveAccount inserts or replaces the account with a.ID.
		SaveAccount(ctx context.Context, a core.BankAccount) error
		DeleteAccount(ctx context.Context, id string) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		SaveTransaction(ctx context.Context, tx core.Transaction) error
		// DeleteTransaction also removes the transaction's exceptions.
		DeleteTransaction(ctx context.Context, id string) error
	}

	CardStore interface {
		ListCards(ctx context.Context) ([]core.CreditCard, error)
		GetCard(ctx context.Context, id string) (core.CreditCard, error)
		SaveCard(ctx context.Context, c core.CreditCard) error
		// DeleteCard also removes the card's invoices.
		DeleteCard(ctx context.Context, id string) error
	}

	InvoiceStore interface {
		ListInvoices(ctx context.Context) ([]core.CreditCardInvoice, error)
		ListCardInvoices(ctx context.Context, cardID string) ([]core.CreditCardInvoice, error)
		GetInvoice(ctx context.Context, cardID string, month core.Month) (core.CreditCardInvoice, error)
		// UpsertInvoice stores the value for (card, month). An existing invoice
		// keeps its id; the stored invoice is returned.
		UpsertInvoice(ctx context.Context, inv core.CreditCardInvoice) (core.CreditCardInvoice, error)
		DeleteInvoice(ctx context.Context, cardID string, month core.Month) error
	}

	ExceptionStore interface {
		ListExceptions(ctx context.Context) ([]core.RecurrenceException, error)
		ListTransactionExceptions(ctx context.Context, txID string) ([]core.RecurrenceException, error)
		// UpsertException replaces any exception for (transaction, date).
		UpsertException(ctx context.Context, e core.RecurrenceException) error
		DeleteException(ctx context.Context, txID string, date core.Date) error
	}

	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, s core.ForecastSnapshot) error
		// ListSnapshots returns the most recent snapshots first.
		ListSnapshots(ctx context.Context, limit int) ([]core.ForecastSnapshot, error)
		// LastSnapshot returns ErrNotFound when none was recorded.
		LastSnapshot(ctx context.Context) (core.ForecastSnapshot, error)
	}

	// LedgerReader is the read side the forecast engine needs.
	LedgerReader interface {
		ListAccounts(ctx context.Context) ([]core.BankAccount, error)
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		ListCards(ctx context.Context) ([]core.CreditCard, error)
		ListInvoices(ctx context.Context) ([]core.CreditCardInvoice, error)
		ListExceptions(ctx context.Context) ([]core.RecurrenceException, error)
	}

	// Store is the full storage surface of a backend.
	Store interface {
		AccountStore
		TransactionStore
		CardStore
		InvoiceStore
		ExceptionStore
		SnapshotStore
		Ping(ctx context.Context) error
		Close() error
	}
)
