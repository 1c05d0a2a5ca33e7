package entity

// RunStatus is the lifecycle status of a payroll run
type RunStatus string

// Payroll run statuses
const (
	RunStatusDraft    RunStatus = "draft"
	RunStatusReview   RunStatus = "review"
	RunStatusApproved RunStatus = "approved"
	RunStatusPaid     RunStatus = "paid"
)

// Rate source labels recorded on every line item
const (
	RateSourceAssignment     = "assignment"
	RateSourceServiceDefault = "service_default"
	RateSourceTeacherDefault = "teacher_default"
	RateSourceManual         = "manual"
)

// Enrollment status constants
const (
	EnrollmentStatusActive = "active"
	EnrollmentStatusEnded  = "ended"
)

// SMS message status constants
const (
	SmsStatusPending     = "pending"
	SmsStatusSent        = "sent"
	SmsStatusDelivered   = "delivered"
	SmsStatusFailed      = "failed"
	SmsStatusUndelivered = "undelivered"
)

// Payment notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// IsEditable reports whether line item hours and adjustments may change
func (s RunStatus) IsEditable() bool {
	return s == RunStatusReview
}

// AllowsManualItems reports whether manual line items may be added or removed
func (s RunStatus) AllowsManualItems() bool {
	return s == RunStatusDraft || s == RunStatusReview
}

// IsFinalSmsStatus reports whether s ends a message's delivery lifecycle.
// A message in a final status keeps it.
func IsFinalSmsStatus(s string) bool {
	switch s {
	case SmsStatusDelivered, SmsStatusFailed, SmsStatusUndelivered:
		return true
	}
	return false
}
