package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/ports"
)

const defaultSnapshotLimit = 30

// PeriodQuery selects a dashboard window. Start and End are only read for the
// custom period.
type PeriodQuery struct {
	Period string
	Start  core.Date
	End    core.Date
}

// TimelineResult is the chronological list of cash movements in a window.
type TimelineResult struct {
	Window   forecast.Window          `json:"window"`
	Entries  []forecast.TimelineEntry `json:"entries"`
	Totals   forecast.PeriodTotals    `json:"totals"`
	Warnings []forecast.Warning       `json:"warnings"`
}

// KPIs are the headline figures of a dashboard period.
type KPIs struct {
	Window         forecast.Window       `json:"window"`
	Totals         forecast.PeriodTotals `json:"totals"`
	CurrentBalance core.Money            `json:"current_balance"`
	// ProjectedBalance is the expected balance at the window end; nil when
	// the window ends before today.
	ProjectedBalance *core.Money        `json:"projected_balance"`
	Warnings         []forecast.Warning `json:"warnings"`
}

// ForecastService loads the ledger from storage and runs the forecast engine
// over it.
type ForecastService struct {
	ledger    ports.LedgerReader
	snapshots ports.SnapshotStore
	now       func() time.Time
}

func NewForecastService(ledger ports.LedgerReader, snapshots ports.SnapshotStore) *ForecastService {
	return &ForecastService{
		ledger:    ledger,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests and the worker.
func (s *ForecastService) WithClock(now func() time.Time) *ForecastService {
	s.now = now
	return s
}

// LoadLedger reads every ledger collection concurrently. The first failure
// cancels the remaining reads.
func (s *ForecastService) LoadLedger(ctx context.Context) (forecast.Ledger, error) {
	var l forecast.Ledger
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		l.Accounts, err = s.ledger.ListAccounts(gctx)
		return wrapLoad("accounts", err)
	})
	g.Go(func() (err error) {
		l.Transactions, err = s.ledger.ListTransactions(gctx)
		return wrapLoad("transactions", err)
	})
	g.Go(func() (err error) {
		l.Cards, err = s.ledger.ListCards(gctx)
		return wrapLoad("credit cards", err)
	})
	g.Go(func() (err error) {
		l.Invoices, err = s.ledger.ListInvoices(gctx)
		return wrapLoad("invoices", err)
	})
	g.Go(func() (err error) {
		l.Exceptions, err = s.ledger.ListExceptions(gctx)
		return wrapLoad("exceptions", err)
	})

	if err := g.Wait(); err != nil {
		return forecast.Ledger{}, err
	}
	return l, nil
}

func wrapLoad(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

func (s *ForecastService) window(q PeriodQuery) (forecast.Window, error) {
	p, err := forecast.ParsePeriod(q.Period)
	if err != nil {
		return forecast.Window{}, err
	}
	return forecast.ResolvePeriod(p, s.now(), q.Start, q.End)
}

// Timeline lists the occurrences and invoices of a period in date order.
func (s *ForecastService) Timeline(ctx context.Context, q PeriodQuery) (TimelineResult, error) {
	w, err := s.window(q)
	if err != nil {
		return TimelineResult{}, err
	}
	l, err := s.LoadLedger(ctx)
	if err != nil {
		return TimelineResult{}, err
	}

	occs, invoices, warnings := forecast.Collect(l, w)
	logWarnings(ctx, "timeline", warnings)

	return TimelineResult{
		Window:   w,
		Entries:  forecast.Timeline(occs, invoices),
		Totals:   forecast.Aggregate(occs, invoices),
		Warnings: nonNil(warnings),
	}, nil
}

// KPIs sums a period and projects the balance to its last day.
func (s *ForecastService) KPIs(ctx context.Context, q PeriodQuery) (KPIs, error) {
	w, err := s.window(q)
	if err != nil {
		return KPIs{}, err
	}
	l, err := s.LoadLedger(ctx)
	if err != nil {
		return KPIs{}, err
	}

	occs, invoices, warnings := forecast.Collect(l, w)
	k := KPIs{
		Window:         w,
		Totals:         forecast.Aggregate(occs, invoices),
		CurrentBalance: forecast.CurrentBalance(l.Accounts),
	}

	today := s.now()
	if !w.End.Before(core.DateOf(today).Time) {
		p, err := forecast.Project(l, today, w.End.Time)
		if err != nil {
			return KPIs{}, err
		}
		k.ProjectedBalance = &p.ProjectedBalance
		for _, pw := range p.Warnings {
			if pw.Code == forecast.WarnStaleBalance {
				warnings = append(warnings, pw)
			}
		}
	}
	logWarnings(ctx, "kpis", warnings)
	k.Warnings = nonNil(warnings)
	return k, nil
}

// Project computes the balance expected on target. A zero target means the
// last day of the current month.
func (s *ForecastService) Project(ctx context.Context, target core.Date) (forecast.Projection, error) {
	return s.ProjectAt(ctx, s.now(), target)
}

// ProjectAt is Project with an explicit today.
func (s *ForecastService) ProjectAt(ctx context.Context, today time.Time, target core.Date) (forecast.Projection, error) {
	if target.IsZero() {
		target = core.MonthOf(core.DateOf(today)).Last()
	}
	l, err := s.LoadLedger(ctx)
	if err != nil {
		return forecast.Projection{}, err
	}
	p, err := forecast.Project(l, today, target.Time)
	if err != nil {
		return forecast.Projection{}, err
	}
	logWarnings(ctx, "projection", p.Warnings)
	return p, nil
}

// Simulate evaluates a hypothetical purchase. A zero purchase date means today.
func (s *ForecastService) Simulate(ctx context.Context, amount core.Money, purchase core.Date) (forecast.Simulation, error) {
	today := s.now()
	if purchase.IsZero() {
		purchase = core.DateOf(today)
	}
	l, err := s.LoadLedger(ctx)
	if err != nil {
		return forecast.Simulation{}, err
	}
	sim, err := forecast.Simulate(l, today, amount, purchase.Time)
	if err != nil {
		return forecast.Simulation{}, err
	}

	slog.InfoContext(ctx, "Purchase simulated",
		"amount", amount.String(),
		"purchase_date", purchase.Key(),
		"new_projected_balance", sim.NewProjectedBalance.String(),
		"risk", sim.Risk)
	return sim, nil
}

// InvoiceBreakdown splits a card invoice into the subscription charges
// already billed and those still pending before closing.
func (s *ForecastService) InvoiceBreakdown(ctx context.Context, cardID string, month core.Month) (forecast.InvoiceBreakdown, error) {
	l, err := s.LoadLedger(ctx)
	if err != nil {
		return forecast.InvoiceBreakdown{}, err
	}

	var (
		card      core.CreditCard
		foundCard bool
	)
	for _, c := range l.Cards {
		if c.ID == cardID {
			card, foundCard = c, true
			break
		}
	}
	if !foundCard {
		return forecast.InvoiceBreakdown{}, fmt.Errorf("credit card %s: %w", cardID, ports.ErrNotFound)
	}

	for _, inv := range l.Invoices {
		if inv.CreditCardID == cardID && inv.Month == month {
			return forecast.BreakdownInvoice(inv, card, l.Transactions, forecast.NewExceptionIndex(l.Exceptions)), nil
		}
	}
	return forecast.InvoiceBreakdown{}, fmt.Errorf("invoice %s/%s: %w", cardID, month, ports.ErrNotFound)
}

// Snapshots returns the most recent recorded projections.
func (s *ForecastService) Snapshots(ctx context.Context, limit int) ([]core.ForecastSnapshot, error) {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	return s.snapshots.ListSnapshots(ctx, limit)
}

func logWarnings(ctx context.Context, op string, warnings []forecast.Warning) {
	for _, w := range warnings {
		slog.WarnContext(ctx, "Forecast warning",
			"operation", op,
			"code", w.Code,
			"source_id", w.SourceID,
			"message", w.Message)
	}
}

func nonNil(w []forecast.Warning) []forecast.Warning {
	if w == nil {
		return []forecast.Warning{}
	}
	return w
}
