package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrStaleVersion is returned when a caller's expected version no longer matches
	ErrStaleVersion = errors.New("stale version")

	// ErrFinalStatus is returned when a write would replace a final SMS status
	ErrFinalStatus = errors.New("status is final")

	// ErrValidation is matched by every ValidationError through errors.Is
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports bad caller input
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
