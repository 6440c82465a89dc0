// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for snapshot cadence checking.
// Each cadence (daily, weekly, monthly) has its own strategy that decides
// whether a new forecast snapshot is due given the last one taken.

package services

import (
	"fmt"
	"time"

	"cashflow/internal/core"
)

// Cadence names how often forecast snapshots are recorded.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// DuenessChecker is the strategy interface for checking if a snapshot is due.
type DuenessChecker interface {
	// IsDue returns true if a snapshot should be taken based on the last
	// execution time and the current time. anchor carries the day of month
	// monthly cadences wait for.
	IsDue(lastExecution, now time.Time, anchor core.Date) bool
}

// DailyChecker implements DuenessChecker for daily snapshots.
type DailyChecker struct{}

// IsDue returns true if last execution was before today. Days are UTC
// calendar days, matching how snapshots store TakenAt.
func (DailyChecker) IsDue(lastExecution, now time.Time, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return core.DateOf(lastExecution.UTC()).Key() != core.DateOf(now.UTC()).Key()
}

// WeeklyChecker implements DuenessChecker for weekly snapshots.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since last execution.
func (WeeklyChecker) IsDue(lastExecution, now time.Time, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	daysSince := now.Sub(lastExecution).Hours() / 24
	return daysSince >= 7
}

// MonthlyChecker implements DuenessChecker for monthly snapshots.
type MonthlyChecker struct{}

// IsDue returns true if we're in a new UTC month and have reached the anchor
// day.
func (MonthlyChecker) IsDue(lastExecution, now time.Time, anchor core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	lastExecution, now = lastExecution.UTC(), now.UTC()

	// Already taken this month?
	if lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}

	target := core.MonthOf(core.DateOf(now)).Day(anchor.Day())
	return now.Day() >= target.Day()
}

// duenessStrategies maps cadences to their corresponding checkers.
var duenessStrategies = map[Cadence]DuenessChecker{
	CadenceDaily:   DailyChecker{},
	CadenceWeekly:  WeeklyChecker{},
	CadenceMonthly: MonthlyChecker{},
}

// GetDuenessChecker returns the appropriate dueness checker for a cadence.
// Returns an error if the cadence is not supported.
func GetDuenessChecker(cadence Cadence) (DuenessChecker, error) {
	checker, ok := duenessStrategies[cadence]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot cadence: %s", cadence)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new cadence.
func RegisterDuenessChecker(cadence Cadence, checker DuenessChecker) {
	duenessStrategies[cadence] = checker
}
