package entity

import "time"

// PayrollRun is one payroll batch for a pay period
type PayrollRun struct {
	ID              string     `json:"id"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	Status          RunStatus  `json:"status"`
	TotalHours      float64    `json:"total_hours"`
	TotalCalculated float64    `json:"total_calculated"`
	TotalAdjusted   float64    `json:"total_adjusted"`
	TeacherCount    int        `json:"teacher_count"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PayrollLineItem is one payable unit within a run.
// A nil AssignmentID marks a manual entry.
type PayrollLineItem struct {
	ID               string    `json:"id"`
	RunID            string    `json:"run_id"`
	TeacherID        string    `json:"teacher_id"`
	AssignmentID     *string   `json:"teacher_assignment_id,omitempty"`
	Description      string    `json:"description"`
	CalculatedHours  float64   `json:"calculated_hours"`
	ActualHours      float64   `json:"actual_hours"`
	HourlyRate       float64   `json:"hourly_rate"`
	CalculatedAmount float64   `json:"calculated_amount"`
	AdjustmentAmount float64   `json:"adjustment_amount"`
	FinalAmount      float64   `json:"final_amount"`
	RateSource       string    `json:"rate_source"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsManual reports whether the item was added by hand rather than generated from an assignment
func (li *PayrollLineItem) IsManual() bool {
	return li.AssignmentID == nil
}

// RunTotals holds the aggregates stored on a run
type RunTotals struct {
	TotalHours      float64 `json:"total_hours"`
	TotalCalculated float64 `json:"total_calculated"`
	TotalAdjusted   float64 `json:"total_adjusted"`
	TeacherCount    int     `json:"teacher_count"`
}

// Apply copies totals onto the run
func (t RunTotals) Apply(run *PayrollRun) {
	run.TotalHours = t.TotalHours
	run.TotalCalculated = t.TotalCalculated
	run.TotalAdjusted = t.TotalAdjusted
	run.TeacherCount = t.TeacherCount
}

// PayrollRunDetail is a run together with its line items
type PayrollRunDetail struct {
	Run       *PayrollRun        `json:"run"`
	LineItems []*PayrollLineItem `json:"line_items"`
}
