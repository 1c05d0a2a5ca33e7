package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// CalculatedHours returns the hours an assignment is expected to teach in the period.
// An explicit weekly schedule is summed day by day; otherwise the weekly figure is
// scaled by days/7. Assignments with neither yield zero.
func CalculatedHours(a *entity.Assignment, p Period) float64 {
	if a.WeeklySchedule.HasHours() {
		total := decimal.Zero
		for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
			total = total.Add(decimal.NewFromFloat(a.WeeklySchedule[d.Weekday()]))
		}
		f, _ := total.Round(2).Float64()
		return f
	}

	if a.HoursPerWeek == nil {
		return 0
	}

	h := decimal.NewFromInt(int64(p.Days())).
		Div(decimal.NewFromInt(7)).
		Mul(decimal.NewFromFloat(*a.HoursPerWeek)).
		Round(2)
	f, _ := h.Float64()
	return f
}
