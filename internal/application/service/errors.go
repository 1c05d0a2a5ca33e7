package service

import "fmt"

// InconsistentStateError is returned when a multi-step operation failed part
// way and the compensating step failed too. The data needs a manual check.
type InconsistentStateError struct {
	Operation  string
	EntityID   string
	StepErr    error
	RestoreErr error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s %s left in an inconsistent state, manual check required: %v (restore failed: %v)",
		e.Operation, e.EntityID, e.StepErr, e.RestoreErr)
}

func (e *InconsistentStateError) Unwrap() []error {
	return []error{e.StepErr, e.RestoreErr}
}
