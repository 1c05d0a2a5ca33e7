package workflow

import (
	"context"
	"errors"
	"fmt"
)

// StateMachine tracks the current state and validates transitions
type StateMachine interface {
	State() State
	CanFire(trigger Trigger) bool

	// Fire moves to the configured target state or returns an *InvalidTransitionError
	Fire(ctx context.Context, trigger Trigger) error

	// TransitionTo fires whichever trigger leads to target
	TransitionTo(ctx context.Context, target State) error

	PermittedTriggers() []Trigger
}

type stateMachine struct {
	currentState   State
	configurations map[State]*stateConfig
}

func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire ignores guards, which need a context to evaluate
func (m *stateMachine) CanFire(trigger Trigger) bool {
	cfg, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}
	return len(cfg.transitions[trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	cfg, exists := m.configurations[m.currentState]
	if !exists || len(cfg.transitions[trigger]) == 0 {
		return &InvalidTransitionError{From: m.currentState, Trigger: trigger}
	}

	for _, t := range cfg.transitions[trigger] {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}

func (m *stateMachine) TransitionTo(ctx context.Context, target State) error {
	trigger, ok := TriggerFor(target)
	if !ok {
		return &InvalidTransitionError{From: m.currentState, To: target}
	}

	from := m.currentState
	if err := m.Fire(ctx, trigger); err != nil {
		var ite *InvalidTransitionError
		if errors.As(err, &ite) {
			return &InvalidTransitionError{From: from, To: target, Trigger: trigger}
		}
		return err
	}
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	cfg, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(cfg.transitions))
	for trigger := range cfg.transitions {
		triggers = append(triggers, trigger)
	}
	return triggers
}
