package payroll

import (
	"time"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// PeriodLengthDays is the length of a default pay period
const PeriodLengthDays = 14

// DefaultAnchor is the epoch Monday that fixes bi-weekly period parity
var DefaultAnchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Period is an inclusive date range
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod validates and normalizes an inclusive range to UTC midnights
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: TruncateDay(start), End: TruncateDay(end)}
	if p.Start.IsZero() || p.End.IsZero() {
		return Period{}, entity.NewValidationError("period", "start and end are required")
	}
	if p.End.Before(p.Start) {
		return Period{}, entity.NewValidationError("period_end", "must not be before period_start")
	}
	return p, nil
}

// Days returns the inclusive number of calendar days in the period
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// DefaultPeriod returns the bi-weekly period containing now.
// Periods start on anchor plus a multiple of 14 days, so week parity relative
// to the anchor Monday decides whether a period starts this week or last week.
func DefaultPeriod(now, anchor time.Time) Period {
	day := TruncateDay(now)
	anchor = TruncateDay(anchor)

	offset := int(day.Sub(anchor).Hours() / 24)
	shift := offset % PeriodLengthDays
	if shift < 0 {
		shift += PeriodLengthDays
	}

	start := day.AddDate(0, 0, -shift)
	return Period{Start: start, End: start.AddDate(0, 0, PeriodLengthDays-1)}
}

// TruncateDay drops the time of day, keeping the calendar date in UTC
func TruncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
