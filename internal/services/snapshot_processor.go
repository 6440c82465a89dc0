package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/ports"
)

// SnapshotProcessor records month-end projections so balance forecasts can
// be compared over time.
type SnapshotProcessor struct {
	forecasts *ForecastService
	store     ports.SnapshotStore
	cadence   Cadence
	checker   DuenessChecker
}

// NewSnapshotProcessor creates a processor that records at most one snapshot
// per cadence period.
func NewSnapshotProcessor(forecasts *ForecastService, store ports.SnapshotStore, cadence Cadence) (*SnapshotProcessor, error) {
	if forecasts == nil || store == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}
	checker, err := GetDuenessChecker(cadence)
	if err != nil {
		return nil, err
	}
	return &SnapshotProcessor{
		forecasts: forecasts,
		store:     store,
		cadence:   cadence,
		checker:   checker,
	}, nil
}

// ProcessDue records a snapshot when the cadence says one is due. It reports
// whether a snapshot was taken.
func (p *SnapshotProcessor) ProcessDue(ctx context.Context, now time.Time) (bool, error) {
	var lastExecution time.Time
	last, err := p.store.LastSnapshot(ctx)
	switch {
	case err == nil:
		lastExecution = last.TakenAt
	case !errors.Is(err, ports.ErrNotFound):
		return false, fmt.Errorf("get last snapshot: %w", err)
	}

	// Monthly cadences anchor on the first day of the month.
	anchor := core.NewDate(now.Year(), 1, 1)
	if !p.checker.IsDue(lastExecution, now, anchor) {
		slog.DebugContext(ctx, "Snapshot not due",
			"cadence", p.cadence,
			"last_taken_at", lastExecution)
		return false, nil
	}

	if _, err := p.Record(ctx, now); err != nil {
		return false, err
	}
	return true, nil
}

// Record projects the balance to the end of now's month and stores it.
func (p *SnapshotProcessor) Record(ctx context.Context, now time.Time) (core.ForecastSnapshot, error) {
	target := core.MonthOf(core.DateOf(now)).Last()
	proj, err := p.forecasts.ProjectAt(ctx, now, target)
	if err != nil {
		return core.ForecastSnapshot{}, fmt.Errorf("project balance: %w", err)
	}

	snap := core.ForecastSnapshot{
		ID:               uuid.NewString(),
		TakenAt:          now.UTC().Truncate(time.Second),
		TargetDate:       target,
		CurrentBalance:   proj.CurrentBalance,
		ProjectedBalance: proj.ProjectedBalance,
		Income:           proj.Totals.Income,
		Expense:          proj.Totals.Expense,
		Invoices:         proj.Totals.Invoices,
	}
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		return core.ForecastSnapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Recorded forecast snapshot",
		"id", snap.ID,
		"target_date", target.Key(),
		"current_balance", snap.CurrentBalance.String(),
		"projected_balance", snap.ProjectedBalance.String(),
		"warnings", len(proj.Warnings))

	return snap, nil
}
