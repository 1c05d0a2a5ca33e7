package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// AssignmentSource bundles an assignment with the rows rate resolution reads
type AssignmentSource struct {
	Assignment *entity.Assignment
	Service    *entity.Service
	Teacher    *entity.Teacher
	Label      string
}

// NewAssignmentLineItem builds the generated line item for one assignment.
// Actual hours start equal to calculated hours and the adjustment is zero.
func NewAssignmentLineItem(runID string, src AssignmentSource, p Period, now time.Time) *entity.PayrollLineItem {
	hours := CalculatedHours(src.Assignment, p)
	rate := ResolveRate(src.Assignment, src.Service, src.Teacher)

	description := src.Label
	if description == "" {
		description = fmt.Sprintf("Assignment %s", src.Assignment.ID)
	}

	assignmentID := src.Assignment.ID
	item := &entity.PayrollLineItem{
		ID:              uuid.NewString(),
		RunID:           runID,
		TeacherID:       src.Assignment.TeacherID,
		AssignmentID:    &assignmentID,
		Description:     description,
		CalculatedHours: hours,
		HourlyRate:      rate.Rate,
		RateSource:      rate.Source,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	item.CalculatedAmount = Multiply(hours, rate.Rate)
	SetActualHours(item, hours)
	return item
}

// NewManualLineItem validates and builds a hand-entered line item.
// Hours are stored rounded to two decimals, as SetActualHours stores them.
func NewManualLineItem(runID, teacherID, description string, hours, rate float64, now time.Time) (*entity.PayrollLineItem, error) {
	description = strings.TrimSpace(description)
	hours = RoundToCent(hours)
	switch {
	case teacherID == "":
		return nil, entity.NewValidationError("teacher_id", "is required")
	case description == "":
		return nil, entity.NewValidationError("description", "must not be empty")
	case hours <= 0:
		return nil, entity.NewValidationError("hours", "must be greater than zero")
	case rate <= 0:
		return nil, entity.NewValidationError("hourly_rate", "must be greater than zero")
	}

	amount := Multiply(hours, rate)
	return &entity.PayrollLineItem{
		ID:               uuid.NewString(),
		RunID:            runID,
		TeacherID:        teacherID,
		Description:      description,
		CalculatedHours:  hours,
		ActualHours:      hours,
		HourlyRate:       rate,
		CalculatedAmount: amount,
		FinalAmount:      amount,
		RateSource:       entity.RateSourceManual,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// SetActualHours updates actual hours and recomputes the final amount
func SetActualHours(item *entity.PayrollLineItem, hours float64) {
	item.ActualHours = RoundToCent(hours)
	item.FinalAmount = FinalAmount(item.ActualHours, item.HourlyRate, item.AdjustmentAmount)
}

// SetAdjustment updates the manual delta and recomputes the final amount
func SetAdjustment(item *entity.PayrollLineItem, adjustment float64) {
	item.AdjustmentAmount = RoundToCent(adjustment)
	item.FinalAmount = FinalAmount(item.ActualHours, item.HourlyRate, item.AdjustmentAmount)
}

// ValidateHours rejects negative hour values
func ValidateHours(hours float64) error {
	if hours < 0 {
		return entity.NewValidationError("hours", "must not be negative")
	}
	return nil
}

// ComputeTotals aggregates line items into run totals
func ComputeTotals(items []*entity.PayrollLineItem) entity.RunTotals {
	hours := make([]float64, 0, len(items))
	calculated := make([]float64, 0, len(items))
	final := make([]float64, 0, len(items))
	teachers := make(map[string]struct{})

	for _, item := range items {
		hours = append(hours, item.ActualHours)
		calculated = append(calculated, item.CalculatedAmount)
		final = append(final, item.FinalAmount)
		teachers[item.TeacherID] = struct{}{}
	}

	return entity.RunTotals{
		TotalHours:      Sum(hours...),
		TotalCalculated: Sum(calculated...),
		TotalAdjusted:   Sum(final...),
		TeacherCount:    len(teachers),
	}
}

// GroupByTeacher returns line items keyed by teacher id, preserving order within each teacher
func GroupByTeacher(items []*entity.PayrollLineItem) map[string][]*entity.PayrollLineItem {
	groups := make(map[string][]*entity.PayrollLineItem)
	for _, item := range items {
		groups[item.TeacherID] = append(groups[item.TeacherID], item)
	}
	return groups
}
