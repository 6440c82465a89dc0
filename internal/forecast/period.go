package forecast

import (
	"fmt"
	"time"

	"cashflow/internal/core"
)

// Period names a dashboard window relative to today.
type Period string

const (
	PeriodCurrent     Period = "current"
	PeriodNext        Period = "next"
	PeriodThreeMonths Period = "3months"
	PeriodCustom      Period = "custom"
)

// ParsePeriod validates a period name. The empty string means current.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodCurrent, nil
	case PeriodCurrent, PeriodNext, PeriodThreeMonths, PeriodCustom:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// ResolvePeriod turns a period into a whole-month window around today.
// start and end are only read for PeriodCustom, where both are required.
func ResolvePeriod(p Period, today time.Time, start, end core.Date) (Window, error) {
	this := core.MonthOf(core.DateOf(today))
	switch p {
	case PeriodCurrent, "":
		return Window{Start: this.First(), End: this.Last()}, nil
	case PeriodNext:
		next := this.Add(1)
		return Window{Start: next.First(), End: next.Last()}, nil
	case PeriodThreeMonths:
		return Window{Start: this.First(), End: this.Add(2).Last()}, nil
	case PeriodCustom:
		if start.IsZero() || end.IsZero() {
			return Window{}, fmt.Errorf("%w: custom period needs start and end", ErrInvalidWindow)
		}
		w := Window{Start: start, End: end}
		if w.Empty() {
			return Window{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow, end, start)
		}
		return w, nil
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
}
