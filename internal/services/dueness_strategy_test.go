package services

import (
	"testing"
	"time"

	"cashflow/internal/core"
)

func TestDailyChecker_IsDue(t *testing.T) {
	checker := DailyChecker{}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	startDate := core.NewDate(2024, 1, 1)

	tests := []struct {
		name          string
		lastExecution time.Time
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			want:          true,
		},
		{
			name:          "executed today - not due",
			lastExecution: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "executed yesterday - is due",
			lastExecution: time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, now, startDate)
			if got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDailyChecker_IsDueAcrossZones(t *testing.T) {
	checker := DailyChecker{}
	startDate := core.NewDate(2024, 1, 1)
	saoPaulo := time.FixedZone("UTC-3", -3*60*60)
	tokyo := time.FixedZone("UTC+9", 9*60*60)

	tests := []struct {
		name          string
		lastExecution time.Time
		now           time.Time
		want          bool
	}{
		{
			// 22:30 local on the 15th is 01:30 UTC on the 16th, the same day as the snapshot.
			name:          "local evening already past utc midnight - not due",
			lastExecution: time.Date(2024, 1, 16, 0, 30, 0, 0, time.UTC),
			now:           time.Date(2024, 1, 15, 22, 30, 0, 0, saoPaulo),
			want:          false,
		},
		{
			// 08:00 local on the 16th is 23:00 UTC on the 15th.
			name:          "local morning still on previous utc day - not due",
			lastExecution: time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 1, 16, 8, 0, 0, 0, tokyo),
			want:          false,
		},
		{
			name:          "next utc day seen from a local zone - is due",
			lastExecution: time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 1, 16, 10, 0, 0, 0, tokyo),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastExecution, tt.now, startDate); got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDueAcrossZones(t *testing.T) {
	// 21:30 on Jan 31 in UTC-3 is already Feb 1 in UTC, where February's
	// snapshot was recorded.
	lastExecution := time.Date(2024, 2, 1, 0, 15, 0, 0, time.UTC)
	now := time.Date(2024, 1, 31, 21, 30, 0, 0, time.FixedZone("UTC-3", -3*60*60))

	if (MonthlyChecker{}).IsDue(lastExecution, now, core.NewDate(2024, 1, 1)) {
		t.Error("MonthlyChecker.IsDue() = true, want false for the same UTC month")
	}
}

func TestWeeklyChecker_IsDue(t *testing.T) {
	checker := WeeklyChecker{}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	startDate := core.NewDate(2024, 1, 1)

	tests := []struct {
		name          string
		lastExecution time.Time
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			want:          true,
		},
		{
			name:          "executed 3 days ago - not due",
			lastExecution: time.Date(2024, 1, 12, 12, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "executed 7 days ago - is due",
			lastExecution: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
			want:          true,
		},
		{
			name:          "executed 10 days ago - is due",
			lastExecution: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, now, startDate)
			if got != tt.want {
				t.Errorf("WeeklyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name          string
		lastExecution time.Time
		now           time.Time
		startDate     core.Date
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			now:           time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			startDate:     core.NewDate(2024, 1, 10),
			want:          true,
		},
		{
			name:          "executed this month - not due",
			lastExecution: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			startDate:     core.NewDate(2024, 1, 10),
			want:          false,
		},
		{
			name:          "new month but before target day - not due",
			lastExecution: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC),
			startDate:     core.NewDate(2024, 1, 15),
			want:          false,
		},
		{
			name:          "new month and on target day - is due",
			lastExecution: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC),
			startDate:     core.NewDate(2024, 1, 15),
			want:          true,
		},
		{
			name:          "anchor day 31 in February - adjusts to 28/29",
			lastExecution: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), // 2024 is a leap year
			startDate:     core.NewDate(2024, 1, 31),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, tt.now, tt.startDate)
			if got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDuenessChecker(t *testing.T) {
	tests := []struct {
		name    string
		cadence Cadence
		wantErr bool
	}{
		{"daily", CadenceDaily, false},
		{"weekly", CadenceWeekly, false},
		{"monthly", CadenceMonthly, false},
		{"yearly", Cadence("yearly"), true},
		{"empty", Cadence(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, err := GetDuenessChecker(tt.cadence)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetDuenessChecker() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && checker == nil {
				t.Error("GetDuenessChecker() returned nil checker")
			}
		})
	}
}

func TestRegisterDuenessChecker(t *testing.T) {
	// Create a custom checker
	customChecker := DailyChecker{} // Using DailyChecker as a mock
	customFreq := Cadence("biweekly")

	// Register it
	RegisterDuenessChecker(customFreq, customChecker)

	// Verify it's registered
	checker, err := GetDuenessChecker(customFreq)
	if err != nil {
		t.Errorf("GetDuenessChecker() after register error = %v", err)
	}
	if checker == nil {
		t.Error("GetDuenessChecker() returned nil after registration")
	}

	// Cleanup - remove the custom checker to avoid affecting other tests
	delete(duenessStrategies, customFreq)
}
