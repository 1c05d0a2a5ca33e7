package workflow

// State is a payroll run lifecycle state
type State string

const (
	StateDraft    State = "draft"
	StateReview   State = "review"
	StateApproved State = "approved"
	StatePaid     State = "paid"
)

var validStates = map[State]bool{
	StateDraft:    true,
	StateReview:   true,
	StateApproved: true,
	StatePaid:     true,
}

var terminalStates = map[State]bool{
	StatePaid: true,
}

// IsTerminal returns true if no transition leaves the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known run state
func (s State) IsValid() bool {
	return validStates[s]
}
