package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cashflow/internal/amqp"
	"cashflow/internal/services"
)

// SnapshotWorker records forecast snapshots on a cron schedule and whenever
// another process reports a ledger change.
type SnapshotWorker struct {
	processor *services.SnapshotProcessor
	schedule  string
	now       func() time.Time

	// mu serializes snapshot writes between the scheduler and the consumer.
	mu           sync.Mutex
	lastRecorded time.Time
}

func NewSnapshotWorker(processor *services.SnapshotProcessor, schedule string) (*SnapshotWorker, error) {
	if processor == nil {
		return nil, errors.New("snapshot processor is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse snapshot schedule %q: %w", schedule, err)
	}
	return &SnapshotWorker{
		processor: processor,
		schedule:  schedule,
		now:       time.Now,
	}, nil
}

// WithClock replaces the time source.
func (w *SnapshotWorker) WithClock(now func() time.Time) *SnapshotWorker {
	w.now = now
	return w
}

// RunDue records a snapshot if the cadence says one is due.
func (w *SnapshotWorker) RunDue(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	taken, err := w.processor.ProcessDue(ctx, now)
	if err != nil {
		return fmt.Errorf("process due snapshot: %w", err)
	}
	if taken {
		w.lastRecorded = now
	}
	return nil
}

// HandleLedgerChange records a fresh snapshot for a ledger change. Changes
// older than the last recorded snapshot are already reflected and skipped.
func (w *SnapshotWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !msg.Timestamp.IsZero() && !msg.Timestamp.After(w.lastRecorded) {
		slog.DebugContext(ctx, "Ledger change already reflected in snapshot",
			"entity", msg.Entity,
			"id", msg.ID,
			"operation", msg.Operation)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger change",
		"entity", msg.Entity,
		"id", msg.ID,
		"operation", msg.Operation)

	now := w.now()
	if _, err := w.processor.Record(ctx, now); err != nil {
		return fmt.Errorf("record snapshot for %s %s: %w", msg.Entity, msg.ID, err)
	}
	w.lastRecorded = now
	return nil
}

// Run performs a startup catch-up, then runs the schedule until ctx is done.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Performing startup snapshot check")
	if err := w.RunDue(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup snapshot check failed", "error", err)
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(w.schedule, func() {
		if err := w.RunDue(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled snapshot failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule snapshots: %w", err)
	}

	c.Start()
	slog.InfoContext(ctx, "Snapshot scheduler started", "schedule", w.schedule)

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	slog.InfoContext(ctx, "Snapshot scheduler stopped")
	return nil
}
