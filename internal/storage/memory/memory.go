package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"cashflow/internal/core"
	"cashflow/internal/ports"
)

type exceptionKey struct {
	txID string
	date string
}

type invoiceKey struct {
	cardID string
	month  core.Month
}

// Store keeps the whole ledger in process memory. Safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]core.BankAccount
	transactions map[string]core.Transaction
	cards        map[string]core.CreditCard
	invoices     map[invoiceKey]core.CreditCardInvoice
	exceptions   map[exceptionKey]core.RecurrenceException
	snapshots    []core.ForecastSnapshot
}

// Seed is the JSON layout of a seed file.
type Seed struct {
	Accounts     []core.BankAccount         `json:"accounts"`
	Transactions []core.Transaction         `json:"transactions"`
	CreditCards  []core.CreditCard          `json:"credit_cards"`
	Invoices     []core.CreditCardInvoice   `json:"invoices"`
	Exceptions   []core.RecurrenceException `json:"exceptions"`
}

func New() *Store {
	return &Store{
		accounts:     map[string]core.BankAccount{},
		transactions: map[string]core.Transaction{},
		cards:        map[string]core.CreditCard{},
		invoices:     map[invoiceKey]core.CreditCardInvoice{},
		exceptions:   map[exceptionKey]core.RecurrenceException{},
	}
}

// NewFromSeed builds a store holding the seed records.
func NewFromSeed(seed Seed) *Store {
	s := New()
	for _, a := range seed.Accounts {
		s.accounts[a.ID] = a
	}
	for _, t := range seed.Transactions {
		s.transactions[t.ID] = t
	}
	for _, c := range seed.CreditCards {
		s.cards[c.ID] = c
	}
	for _, i := range seed.Invoices {
		s.invoices[invoiceKey{i.CreditCardID, i.Month}] = i
	}
	for _, e := range seed.Exceptions {
		s.exceptions[exceptionKey{e.TransactionID, e.Date.Key()}] = e
	}
	return s
}

// NewFromFile loads a JSON seed file. An empty path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return NewFromSeed(seed), nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) ListAccounts(context.Context) ([]core.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := values(s.accounts)
	slices.SortFunc(out, func(a, b core.BankAccount) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.BankAccount{}, fmt.Errorf("account %s: %w", id, ports.ErrNotFound)
	}
	return a, nil
}

func (s *Store) SaveAccount(_ context.Context, a core.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, ports.ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) ListTransactions(context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := values(s.transactions)
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(cmp.Compare(a.Description, b.Description), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ports.ErrNotFound)
	}
	return t, nil
}

func (s *Store) SaveTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ports.ErrNotFound)
	}
	delete(s.transactions, id)
	for k := range s.exceptions {
		if k.txID == id {
			delete(s.exceptions, k)
		}
	}
	return nil
}

func (s *Store) ListCards(context.Context) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := values(s.cards)
	slices.SortFunc(out, func(a, b core.CreditCard) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) GetCard(_ context.Context, id string) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return core.CreditCard{}, fmt.Errorf("credit card %s: %w", id, ports.ErrNotFound)
	}
	return c, nil
}

func (s *Store) SaveCard(_ context.Context, c core.CreditCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
	return nil
}

func (s *Store) DeleteCard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[id]; !ok {
		return fmt.Errorf("credit card %s: %w", id, ports.ErrNotFound)
	}
	delete(s.cards, id)
	for k := range s.invoices {
		if k.cardID == id {
			delete(s.invoices, k)
		}
	}
	return nil
}

func (s *Store) ListInvoices(context.Context) ([]core.CreditCardInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortInvoices(values(s.invoices)), nil
}

func (s *Store) ListCardInvoices(_ context.Context, cardID string) ([]core.CreditCardInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CreditCardInvoice
	for k, inv := range s.invoices {
		if k.cardID == cardID {
			out = append(out, inv)
		}
	}
	return sortInvoices(out), nil
}

func (s *Store) GetInvoice(_ context.Context, cardID string, month core.Month) (core.CreditCardInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoiceKey{cardID, month}]
	if !ok {
		return core.CreditCardInvoice{}, fmt.Errorf("invoice %s/%s: %w", cardID, month, ports.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) UpsertInvoice(_ context.Context, inv core.CreditCardInvoice) (core.CreditCardInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := invoiceKey{inv.CreditCardID, inv.Month}
	if existing, ok := s.invoices[key]; ok {
		inv.ID = existing.ID
	}
	s.invoices[key] = inv
	return inv, nil
}

func (s *Store) DeleteInvoice(_ context.Context, cardID string, month core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := invoiceKey{cardID, month}
	if _, ok := s.invoices[key]; !ok {
		return fmt.Errorf("invoice %s/%s: %w", cardID, month, ports.ErrNotFound)
	}
	delete(s.invoices, key)
	return nil
}

func (s *Store) ListExceptions(context.Context) ([]core.RecurrenceException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortExceptions(values(s.exceptions)), nil
}

func (s *Store) ListTransactionExceptions(_ context.Context, txID string) ([]core.RecurrenceException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurrenceException
	for k, e := range s.exceptions {
		if k.txID == txID {
			out = append(out, e)
		}
	}
	return sortExceptions(out), nil
}

func (s *Store) UpsertException(_ context.Context, e core.RecurrenceException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions[exceptionKey{e.TransactionID, e.Date.Key()}] = e
	return nil
}

func (s *Store) DeleteException(_ context.Context, txID string, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := exceptionKey{txID, date.Key()}
	if _, ok := s.exceptions[key]; !ok {
		return fmt.Errorf("exception %s@%s: %w", txID, date, ports.ErrNotFound)
	}
	delete(s.exceptions, key)
	return nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.ForecastSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *Store) ListSnapshots(_ context.Context, limit int) ([]core.ForecastSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ForecastSnapshot, 0, len(s.snapshots))
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.snapshots[i])
	}
	return out, nil
}

func (s *Store) LastSnapshot(_ context.Context) (core.ForecastSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return core.ForecastSnapshot{}, fmt.Errorf("snapshot: %w", ports.ErrNotFound)
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func sortInvoices(in []core.CreditCardInvoice) []core.CreditCardInvoice {
	slices.SortFunc(in, func(a, b core.CreditCardInvoice) int {
		if c := cmp.Compare(a.CreditCardID, b.CreditCardID); c != 0 {
			return c
		}
		return cmp.Compare(a.Month.String(), b.Month.String())
	})
	return in
}

func sortExceptions(in []core.RecurrenceException) []core.RecurrenceException {
	slices.SortFunc(in, func(a, b core.RecurrenceException) int {
		return cmp.Or(cmp.Compare(a.TransactionID, b.TransactionID), cmp.Compare(a.Date.Key(), b.Date.Key()))
	})
	return in
}

var _ ports.Store = (*Store)(nil)
