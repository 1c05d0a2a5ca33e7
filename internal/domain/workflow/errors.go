package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")
)

// InvalidTransitionError describes a rejected transition.
// errors.Is(err, ErrInvalidTransition) matches it.
type InvalidTransitionError struct {
	From    State
	To      State
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
	}
	return fmt.Sprintf("%s: cannot fire %s from %s", ErrInvalidTransition, e.Trigger, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
