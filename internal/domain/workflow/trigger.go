package workflow

// Trigger is an action that moves a run between states
type Trigger string

const (
	TriggerSubmitForReview Trigger = "submit_for_review"
	TriggerReturnToDraft   Trigger = "return_to_draft"
	TriggerApprove         Trigger = "approve"
	TriggerMarkPaid        Trigger = "mark_paid"
)

// targetTriggers maps each target state to the only trigger that can reach it
var targetTriggers = map[State]Trigger{
	StateDraft:    TriggerReturnToDraft,
	StateReview:   TriggerSubmitForReview,
	StateApproved: TriggerApprove,
	StatePaid:     TriggerMarkPaid,
}

// TriggerFor returns the trigger that moves a run into target
func TriggerFor(target State) (Trigger, bool) {
	t, ok := targetTriggers[target]
	return t, ok
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
