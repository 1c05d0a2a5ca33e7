package event

// Type identifies the type of domain event
type Type string

const (
	TypeRunGenerated     Type = "payroll.run_generated"
	TypeRunStatusChanged Type = "payroll.status_changed"
	TypeRunPaid          Type = "payroll.run_paid"
	TypeEnrollmentEnded  Type = "enrollment.ended"
	TypeSmsBatchSent     Type = "sms.batch_sent"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRunGenerated,
		TypeRunStatusChanged,
		TypeRunPaid,
		TypeEnrollmentEnded,
		TypeSmsBatchSent:
		return true
	default:
		return false
	}
}
