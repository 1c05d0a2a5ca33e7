package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/tutoring-backoffice/internal/application/dispatcher"
	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
	"github.com/garyjia/tutoring-backoffice/internal/domain/payroll"
)

// EnrollmentService ends enrollments together with their teacher assignments
type EnrollmentService interface {
	EndEnrollment(ctx context.Context, enrollmentID string, endDate time.Time) (*EndEnrollmentResult, error)
}

// EndEnrollmentResult reports the outcome of EndEnrollment.
// Warning is set when assignments could not be ended and the enrollment was
// restored to its previous state.
type EndEnrollmentResult struct {
	Enrollment       *entity.Enrollment `json:"enrollment"`
	AssignmentsEnded int                `json:"assignments_ended"`
	Warning          string             `json:"warning,omitempty"`
}

type enrollmentServiceImpl struct {
	enrollmentRepo port.EnrollmentRepository
	assignmentRepo port.AssignmentRepository
	dispatcher     dispatcher.Dispatcher
	logger         Logger
}

// NewEnrollmentService creates a new EnrollmentService
func NewEnrollmentService(
	enrollmentRepo port.EnrollmentRepository,
	assignmentRepo port.AssignmentRepository,
	events dispatcher.Dispatcher,
	logger Logger,
) EnrollmentService {
	return &enrollmentServiceImpl{
		enrollmentRepo: enrollmentRepo,
		assignmentRepo: assignmentRepo,
		dispatcher:     events,
		logger:         logger,
	}
}

// EndEnrollment runs two independent writes: the enrollment is ended, then
// its active assignments. When the second write fails the first is undone
// exactly once. There is no retry.
func (s *enrollmentServiceImpl) EndEnrollment(ctx context.Context, enrollmentID string, endDate time.Time) (*EndEnrollmentResult, error) {
	if endDate.IsZero() {
		return nil, entity.NewValidationError("end_date", "is required")
	}
	endDate = payroll.TruncateDay(endDate)

	enrollment, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("get enrollment %s: %w", enrollmentID, err)
	}
	if enrollment.Status == entity.EnrollmentStatusEnded {
		return nil, entity.NewValidationError("status", "enrollment has already ended")
	}
	if endDate.Before(payroll.TruncateDay(enrollment.StartDate)) {
		return nil, entity.NewValidationError("end_date", "must not be before the enrollment start date")
	}

	prevStatus := enrollment.Status
	prevEndDate := enrollment.EndDate

	if err := s.enrollmentRepo.UpdateStatus(ctx, enrollmentID, entity.EnrollmentStatusEnded, &endDate); err != nil {
		s.logger.Error("Failed to end enrollment", "error", err, "enrollment_id", enrollmentID)
		return nil, fmt.Errorf("end enrollment %s: %w", enrollmentID, err)
	}

	ended, stepErr := s.assignmentRepo.EndByEnrollment(ctx, enrollmentID, endDate)
	if stepErr != nil {
		s.logger.Error("Failed to end assignments, restoring enrollment",
			"error", stepErr, "enrollment_id", enrollmentID)

		if restoreErr := s.enrollmentRepo.UpdateStatus(ctx, enrollmentID, prevStatus, prevEndDate); restoreErr != nil {
			s.logger.Error("Failed to restore enrollment after assignment failure",
				"error", restoreErr, "enrollment_id", enrollmentID, "step_error", stepErr)
			return nil, &InconsistentStateError{
				Operation:  "enrollment",
				EntityID:   enrollmentID,
				StepErr:    stepErr,
				RestoreErr: restoreErr,
			}
		}

		return &EndEnrollmentResult{
			Enrollment: enrollment,
			Warning: fmt.Sprintf("assignments could not be ended (%v); enrollment restored to %s",
				stepErr, prevStatus),
		}, nil
	}

	enrollment.Status = entity.EnrollmentStatusEnded
	enrollment.EndDate = &endDate

	s.logger.Info("Enrollment ended",
		"enrollment_id", enrollmentID, "end_date", endDate.Format(time.DateOnly), "assignments_ended", ended)

	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeEnrollmentEnded, enrollmentID, map[string]interface{}{
		"student_name":      enrollment.StudentName,
		"end_date":          endDate.Format(time.DateOnly),
		"assignments_ended": ended,
	}))

	return &EndEnrollmentResult{Enrollment: enrollment, AssignmentsEnded: ended}, nil
}
