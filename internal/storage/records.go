package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"cashflow/internal/core"
	"cashflow/internal/ports"
)

// rowScanner is satisfied by *sql.Row(s) and pgx.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

// querier hides the differences between database/sql and pgxpool.
type querier interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args []any, each func(rowScanner) error) error
}

// dialect captures the per-engine SQL differences.
type dialect struct {
	placeholder sq.PlaceholderFormat
	// text renders a column so it scans into a string.
	text func(col string) string
}

// repository implements ports.Store on top of any querier.
type repository struct {
	q querier
	d dialect
}

const (
	tableAccounts     = "bank_accounts"
	tableTransactions = "transactions"
	tableCards        = "credit_cards"
	tableInvoices     = "credit_card_invoices"
	tableExceptions   = "recurrence_exceptions"
	tableSnapshots    = "forecast_snapshots"
)

func (r *repository) sb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(r.d.placeholder)
}

func (r *repository) run(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	return r.q.exec(ctx, query, args...)
}

func (r *repository) selectAll(ctx context.Context, b sq.SelectBuilder, each func(rowScanner) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.q.query(ctx, query, args, each)
}

// selectOne runs b and scans the first row; no rows yields ports.ErrNotFound.
func (r *repository) selectOne(ctx context.Context, b sq.SelectBuilder, scan func(rowScanner) error, what string) error {
	found := false
	err := r.selectAll(ctx, b.Limit(1), func(row rowScanner) error {
		found = true
		return scan(row)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", what, ports.ErrNotFound)
	}
	return nil
}

func mustAffect(n int64, err error, what string) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ports.ErrNotFound)
	}
	return nil
}

func (r *repository) texts(cols ...string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.d.text(c)
	}
	return out
}

// Nullable column helpers.

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Key()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func parseNullDate(ns sql.NullString) (core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return core.Date{}, nil
	}
	// Some engines render dates with a time part.
	if len(ns.String) > 10 {
		ns.String = ns.String[:10]
	}
	return core.ParseDate(ns.String)
}

func parseMoney(s string) (core.Money, error) {
	return core.ParseSignedMoney(s)
}

// Accounts

var accountCols = []string{"id", "name", "bank", "account_type", "balance", "balance_date"}

func (r *repository) selectAccounts() sq.SelectBuilder {
	return r.sb().Select(append(accountCols[:4:4], r.texts("balance", "balance_date")...)...).From(tableAccounts)
}

func scanAccount(row rowScanner) (core.BankAccount, error) {
	var (
		a          core.BankAccount
		typ        string
		balance    string
		bank, date sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &bank, &typ, &balance, &date); err != nil {
		return a, fmt.Errorf("scan account: %w", err)
	}
	a.Bank = bank.String
	a.AccountType = core.AccountType(typ)
	var err error
	if a.Balance, err = parseMoney(balance); err != nil {
		return a, err
	}
	a.BalanceDate, err = parseNullDate(date)
	return a, err
}

func (r *repository) ListAccounts(ctx context.Context) ([]core.BankAccount, error) {
	var out []core.BankAccount
	err := r.selectAll(ctx, r.selectAccounts().OrderBy("name", "id"), func(row rowScanner) error {
		a, err := scanAccount(row)
		out = append(out, a)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (r *repository) GetAccount(ctx context.Context, id string) (core.BankAccount, error) {
	var a core.BankAccount
	err := r.selectOne(ctx, r.selectAccounts().Where(sq.Eq{"id": id}), func(row rowScanner) (err error) {
		a, err = scanAccount(row)
		return err
	}, "account "+id)
	return a, err
}

func (r *repository) SaveAccount(ctx context.Context, a core.BankAccount) error {
	_, err := r.run(ctx, r.sb().Insert(tableAccounts).
		Columns(accountCols...).
		Values(a.ID, a.Name, a.Bank, string(a.AccountType), a.Balance.String(), nullDate(a.BalanceDate)).
		Suffix(upsertSuffix("id", accountCols[1:])))
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (r *repository) DeleteAccount(ctx context.Context, id string) error {
	n, err := r.run(ctx, r.sb().Delete(tableAccounts).Where(sq.Eq{"id": id}))
	return mustAffect(n, err, "account "+id)
}

// Transactions

var transactionCols = []string{
	"id", "description", "amount", "type", "expense_type", "is_recurring", "day",
	"date", "recurrence_end_date", "subscription_card", "subscription_billing_day", "subscription_card_due_day",
}

func (r *repository) selectTransactions() sq.SelectBuilder {
	return r.sb().Select(
		"id", "description", r.d.text("amount"), "type", "expense_type", "is_recurring", "day",
		r.d.text("date"), r.d.text("recurrence_end_date"), "subscription_card", "subscription_billing_day", "subscription_card_due_day",
	).From(tableTransactions)
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                              core.Transaction
		amount, typ                    string
		expenseType, card, date, until sql.NullString
		day, billing, due              sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Description, &amount, &typ, &expenseType, &t.IsRecurring, &day,
		&date, &until, &card, &billing, &due); err != nil {
		return t, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.ExpenseType = core.ExpenseType(expenseType.String)
	t.Day = int(day.Int64)
	t.SubscriptionCardID = card.String
	t.SubscriptionBillingDay = int(billing.Int64)
	t.SubscriptionCardDueDay = int(due.Int64)

	var err error
	if t.Amount, err = parseMoney(amount); err != nil {
		return t, err
	}
	if t.Date, err = parseNullDate(date); err != nil {
		return t, err
	}
	t.RecurrenceEndDate, err = parseNullDate(until)
	return t, err
}

func (r *repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	err := r.selectAll(ctx, r.selectTransactions().OrderBy("description", "id"), func(row rowScanner) error {
		t, err := scanTransaction(row)
		out = append(out, t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var t core.Transaction
	err := r.selectOne(ctx, r.selectTransactions().Where(sq.Eq{"id": id}), func(row rowScanner) (err error) {
		t, err = scanTransaction(row)
		return err
	}, "transaction "+id)
	return t, err
}

func (r *repository) SaveTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.run(ctx, r.sb().Insert(tableTransactions).
		Columns(transactionCols...).
		Values(t.ID, t.Description, t.Amount.String(), string(t.Type), nullString(string(t.ExpenseType)),
			t.IsRecurring, nullInt(t.Day), nullDate(t.Date), nullDate(t.RecurrenceEndDate),
			nullString(t.SubscriptionCardID), nullInt(t.SubscriptionBillingDay), nullInt(t.SubscriptionCardDueDay)).
		Suffix(upsertSuffix("id", transactionCols[1:])))
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (r *repository) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := r.run(ctx, r.sb().Delete(tableExceptions).Where(sq.Eq{"transaction_id": id})); err != nil {
		return fmt.Errorf("delete exceptions of %s: %w", id, err)
	}
	n, err := r.run(ctx, r.sb().Delete(tableTransactions).Where(sq.Eq{"id": id}))
	return mustAffect(n, err, "transaction "+id)
}

// Credit cards

var cardCols = []string{"id", "name", "bank_id", "closing_day", "due_day", "color"}

func scanCard(row rowScanner) (core.CreditCard, error) {
	var (
		c           core.CreditCard
		bank, color sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &bank, &c.ClosingDay, &c.DueDay, &color); err != nil {
		return c, fmt.Errorf("scan credit card: %w", err)
	}
	c.BankID = bank.String
	c.Color = color.String
	return c, nil
}

func (r *repository) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	var out []core.CreditCard
	err := r.selectAll(ctx, r.sb().Select(cardCols...).From(tableCards).OrderBy("name", "id"), func(row rowScanner) error {
		c, err := scanCard(row)
		out = append(out, c)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	return out, nil
}

func (r *repository) GetCard(ctx context.Context, id string) (core.CreditCard, error) {
	var c core.CreditCard
	err := r.selectOne(ctx, r.sb().Select(cardCols...).From(tableCards).Where(sq.Eq{"id": id}), func(row rowScanner) (err error) {
		c, err = scanCard(row)
		return err
	}, "credit card "+id)
	return c, err
}

func (r *repository) SaveCard(ctx context.Context, c core.CreditCard) error {
	_, err := r.run(ctx, r.sb().Insert(tableCards).
		Columns(cardCols...).
		Values(c.ID, c.Name, nullString(c.BankID), c.ClosingDay, c.DueDay, nullString(c.Color)).
		Suffix(upsertSuffix("id", cardCols[1:])))
	if err != nil {
		return fmt.Errorf("save credit card: %w", err)
	}
	return nil
}

func (r *repository) DeleteCard(ctx context.Context, id string) error {
	if _, err := r.run(ctx, r.sb().Delete(tableInvoices).Where(sq.Eq{"credit_card_id": id})); err != nil {
		return fmt.Errorf("delete invoices of %s: %w", id, err)
	}
	n, err := r.run(ctx, r.sb().Delete(tableCards).Where(sq.Eq{"id": id}))
	return mustAffect(n, err, "credit card "+id)
}

// Invoices

var invoiceCols = []string{"id", "credit_card_id", "month", "value"}

func (r *repository) selectInvoices() sq.SelectBuilder {
	return r.sb().Select("id", "credit_card_id", "month", r.d.text("value")).From(tableInvoices)
}

func scanInvoice(row rowScanner) (core.CreditCardInvoice, error) {
	var (
		inv          core.CreditCardInvoice
		month, value string
	)
	if err := row.Scan(&inv.ID, &inv.CreditCardID, &month, &value); err != nil {
		return inv, fmt.Errorf("scan invoice: %w", err)
	}
	var err error
	if inv.Month, err = core.ParseMonth(month); err != nil {
		return inv, err
	}
	inv.Value, err = parseMoney(value)
	return inv, err
}

func (r *repository) listInvoices(ctx context.Context, b sq.SelectBuilder) ([]core.CreditCardInvoice, error) {
	var out []core.CreditCardInvoice
	err := r.selectAll(ctx, b.OrderBy("credit_card_id", "month"), func(row rowScanner) error {
		inv, err := scanInvoice(row)
		out = append(out, inv)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

func (r *repository) ListInvoices(ctx context.Context) ([]core.CreditCardInvoice, error) {
	return r.listInvoices(ctx, r.selectInvoices())
}

func (r *repository) ListCardInvoices(ctx context.Context, cardID string) ([]core.CreditCardInvoice, error) {
	return r.listInvoices(ctx, r.selectInvoices().Where(sq.Eq{"credit_card_id": cardID}))
}

func (r *repository) GetInvoice(ctx context.Context, cardID string, month core.Month) (core.CreditCardInvoice, error) {
	var inv core.CreditCardInvoice
	b := r.selectInvoices().Where(sq.Eq{"credit_card_id": cardID, "month": month.String()})
	err := r.selectOne(ctx, b, func(row rowScanner) (err error) {
		inv, err = scanInvoice(row)
		return err
	}, fmt.Sprintf("invoice %s/%s", cardID, month))
	return inv, err
}

func (r *repository) UpsertInvoice(ctx context.Context, inv core.CreditCardInvoice) (core.CreditCardInvoice, error) {
	_, err := r.run(ctx, r.sb().Insert(tableInvoices).
		Columns(invoiceCols...).
		Values(inv.ID, inv.CreditCardID, inv.Month.String(), inv.Value.String()).
		Suffix(upsertSuffix("credit_card_id, month", []string{"value"})))
	if err != nil {
		return core.CreditCardInvoice{}, fmt.Errorf("upsert invoice: %w", err)
	}
	return r.GetInvoice(ctx, inv.CreditCardID, inv.Month)
}

func (r *repository) DeleteInvoice(ctx context.Context, cardID string, month core.Month) error {
	n, err := r.run(ctx, r.sb().Delete(tableInvoices).Where(sq.Eq{"credit_card_id": cardID, "month": month.String()}))
	return mustAffect(n, err, fmt.Sprintf("invoice %s/%s", cardID, month))
}

// Recurrence exceptions

var exceptionCols = []string{"transaction_id", "date", "action", "override_amount", "override_description"}

func (r *repository) selectExceptions() sq.SelectBuilder {
	return r.sb().Select("transaction_id", r.d.text("date"), "action", r.d.text("override_amount"), "override_description").
		From(tableExceptions)
}

func scanException(row rowScanner) (core.RecurrenceException, error) {
	var (
		e              core.RecurrenceException
		date, action   string
		amount, descNS sql.NullString
	)
	if err := row.Scan(&e.TransactionID, &date, &action, &amount, &descNS); err != nil {
		return e, fmt.Errorf("scan exception: %w", err)
	}
	e.Action = core.ExceptionAction(action)
	var err error
	if e.Date, err = parseNullDate(sql.NullString{String: date, Valid: true}); err != nil {
		return e, err
	}
	if amount.Valid {
		m, err := parseMoney(amount.String)
		if err != nil {
			return e, err
		}
		e.OverrideAmount = &m
	}
	if descNS.Valid {
		desc := descNS.String
		e.OverrideDescription = &desc
	}
	return e, nil
}

func (r *repository) listExceptions(ctx context.Context, b sq.SelectBuilder) ([]core.RecurrenceException, error) {
	var out []core.RecurrenceException
	err := r.selectAll(ctx, b.OrderBy("transaction_id", "date"), func(row rowScanner) error {
		e, err := scanException(row)
		out = append(out, e)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	return out, nil
}

func (r *repository) ListExceptions(ctx context.Context) ([]core.RecurrenceException, error) {
	return r.listExceptions(ctx, r.selectExceptions())
}

func (r *repository) ListTransactionExceptions(ctx context.Context, txID string) ([]core.RecurrenceException, error) {
	return r.listExceptions(ctx, r.selectExceptions().Where(sq.Eq{"transaction_id": txID}))
}

func (r *repository) UpsertException(ctx context.Context, e core.RecurrenceException) error {
	var amount, desc any
	if e.OverrideAmount != nil {
		amount = e.OverrideAmount.String()
	}
	if e.OverrideDescription != nil {
		desc = *e.OverrideDescription
	}
	_, err := r.run(ctx, r.sb().Insert(tableExceptions).
		Columns(exceptionCols...).
		Values(e.TransactionID, e.Date.Key(), string(e.Action), amount, desc).
		Suffix(upsertSuffix("transaction_id, date", exceptionCols[2:])))
	if err != nil {
		return fmt.Errorf("upsert exception: %w", err)
	}
	return nil
}

func (r *repository) DeleteException(ctx context.Context, txID string, date core.Date) error {
	n, err := r.run(ctx, r.sb().Delete(tableExceptions).Where(sq.Eq{"transaction_id": txID, "date": date.Key()}))
	return mustAffect(n, err, fmt.Sprintf("exception %s@%s", txID, date))
}

// Forecast snapshots

var snapshotCols = []string{"id", "taken_at", "target_date", "current_balance", "projected_balance", "income", "expense", "invoices"}

func (r *repository) selectSnapshots() sq.SelectBuilder {
	return r.sb().Select(append([]string{"id", "taken_at"}, r.texts(snapshotCols[2:]...)...)...).
		From(tableSnapshots).
		OrderBy("taken_at DESC", "id DESC")
}

func scanSnapshot(row rowScanner) (core.ForecastSnapshot, error) {
	var (
		s      core.ForecastSnapshot
		target string
		money  [5]string
	)
	if err := row.Scan(&s.ID, &s.TakenAt, &target, &money[0], &money[1], &money[2], &money[3], &money[4]); err != nil {
		return s, fmt.Errorf("scan snapshot: %w", err)
	}
	var err error
	if s.TargetDate, err = parseNullDate(sql.NullString{String: target, Valid: true}); err != nil {
		return s, err
	}
	dest := []*core.Money{&s.CurrentBalance, &s.ProjectedBalance, &s.Income, &s.Expense, &s.Invoices}
	for i, m := range money {
		if *dest[i], err = parseMoney(m); err != nil {
			return s, err
		}
	}
	s.TakenAt = s.TakenAt.UTC()
	return s, nil
}

func (r *repository) SaveSnapshot(ctx context.Context, s core.ForecastSnapshot) error {
	_, err := r.run(ctx, r.sb().Insert(tableSnapshots).
		Columns(snapshotCols...).
		Values(s.ID, s.TakenAt.UTC().Truncate(time.Second), s.TargetDate.Key(), s.CurrentBalance.String(),
			s.ProjectedBalance.String(), s.Income.String(), s.Expense.String(), s.Invoices.String()))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *repository) ListSnapshots(ctx context.Context, limit int) ([]core.ForecastSnapshot, error) {
	b := r.selectSnapshots()
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	var out []core.ForecastSnapshot
	err := r.selectAll(ctx, b, func(row rowScanner) error {
		s, err := scanSnapshot(row)
		out = append(out, s)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

func (r *repository) LastSnapshot(ctx context.Context) (core.ForecastSnapshot, error) {
	var s core.ForecastSnapshot
	err := r.selectOne(ctx, r.selectSnapshots(), func(row rowScanner) (err error) {
		s, err = scanSnapshot(row)
		return err
	}, "snapshot")
	return s, err
}

// upsertSuffix renders an ON CONFLICT clause understood by both SQLite and
// PostgreSQL.
func upsertSuffix(conflict string, cols []string) string {
	set := ""
	for i, c := range cols {
		if i > 0 {
			set += ", "
		}
		set += c + " = excluded." + c
	}
	return "ON CONFLICT (" + conflict + ") DO UPDATE SET " + set
}
