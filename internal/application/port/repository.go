package port

import (
	"context"
	"time"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// TeacherRepository defines persistence operations for Teacher
type TeacherRepository interface {
	Create(ctx context.Context, teacher *entity.Teacher) error
	GetByID(ctx context.Context, id string) (*entity.Teacher, error)
	List(ctx context.Context) ([]*entity.Teacher, error)
}

// ServiceRepository defines persistence operations for Service
type ServiceRepository interface {
	Create(ctx context.Context, service *entity.Service) error
	GetByID(ctx context.Context, id string) (*entity.Service, error)
	List(ctx context.Context) ([]*entity.Service, error)
}

// EnrollmentRepository defines persistence operations for Enrollment
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *entity.Enrollment) error
	GetByID(ctx context.Context, id string) (*entity.Enrollment, error)
	// UpdateStatus sets status and end_date; a nil endDate clears it
	UpdateStatus(ctx context.Context, id, status string, endDate *time.Time) error
}

// AssignmentRepository defines persistence operations for Assignment
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *entity.Assignment) error
	GetByID(ctx context.Context, id string) (*entity.Assignment, error)
	ListActive(ctx context.Context) ([]*entity.Assignment, error)
	// EndByEnrollment deactivates every active assignment of the enrollment and
	// returns how many were ended
	EndByEnrollment(ctx context.Context, enrollmentID string, endDate time.Time) (int, error)
}

// RunFilter narrows PayrollRunRepository.List
type RunFilter struct {
	Status entity.RunStatus
	Limit  int
	Offset int
}

// PayrollRunRepository defines persistence operations for PayrollRun
type PayrollRunRepository interface {
	Create(ctx context.Context, run *entity.PayrollRun) error
	GetByID(ctx context.Context, id string) (*entity.PayrollRun, error)
	// GetByPeriod returns ErrNotFound when no run covers exactly [start, end]
	GetByPeriod(ctx context.Context, start, end time.Time) (*entity.PayrollRun, error)
	List(ctx context.Context, filter RunFilter) ([]*entity.PayrollRun, error)
	// Update writes status, timestamps and totals when the stored version still
	// equals run.Version, then increments run.Version. A concurrent writer
	// yields ErrStaleVersion.
	Update(ctx context.Context, run *entity.PayrollRun) error
}

// LineItemRepository defines persistence operations for PayrollLineItem
type LineItemRepository interface {
	Create(ctx context.Context, item *entity.PayrollLineItem) error
	CreateBatch(ctx context.Context, items []*entity.PayrollLineItem) error
	GetByID(ctx context.Context, id string) (*entity.PayrollLineItem, error)
	ListByRun(ctx context.Context, runID string) ([]*entity.PayrollLineItem, error)
	// UpdateAmounts persists actual hours, adjustment and final amount
	UpdateAmounts(ctx context.Context, item *entity.PayrollLineItem) error
	Delete(ctx context.Context, id string) error
}

// SmsMessageRepository defines persistence operations for SmsMessage
type SmsMessageRepository interface {
	Create(ctx context.Context, msg *entity.SmsMessage) error
	GetByID(ctx context.Context, id string) (*entity.SmsMessage, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*entity.SmsMessage, error)
	ListByBatch(ctx context.Context, batchID string) ([]*entity.SmsMessage, error)
	// UpdateStatus only moves a pending or sent message; a message in a final
	// status returns entity.ErrFinalStatus
	UpdateStatus(ctx context.Context, id, status, providerMessageID, errorMessage string) error
}

// PaymentNotificationRepository records each payment webhook attempt
type PaymentNotificationRepository interface {
	Create(ctx context.Context, notification *entity.PaymentNotification) error
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	ListByRun(ctx context.Context, runID string) ([]*entity.PaymentNotification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
