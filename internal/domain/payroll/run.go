package payroll

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// BuildRun creates a draft run for the period with one line item per active
// assignment whose window overlaps it. Inactive or non-overlapping sources are skipped.
func BuildRun(p Period, sources []AssignmentSource, now time.Time) (*entity.PayrollRun, []*entity.PayrollLineItem) {
	run := &entity.PayrollRun{
		ID:          uuid.NewString(),
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		Status:      entity.RunStatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	items := make([]*entity.PayrollLineItem, 0, len(sources))
	for _, src := range sources {
		if src.Assignment == nil || !src.Assignment.IsActive || !src.Assignment.Overlaps(p.Start, p.End) {
			continue
		}
		items = append(items, NewAssignmentLineItem(run.ID, src, p, now))
	}

	ComputeTotals(items).Apply(run)
	return run, items
}
