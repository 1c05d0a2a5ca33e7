package workflow

// NewPayrollRunMachine returns a machine for the payroll run lifecycle:
//
//	draft -> review -> approved -> paid
//	review -> draft
//
// Paid is terminal.
func NewPayrollRunMachine(initial State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmitForReview, StateReview)

	builder.Configure(StateReview).
		Permit(TriggerReturnToDraft, StateDraft).
		Permit(TriggerApprove, StateApproved)

	builder.Configure(StateApproved).
		Permit(TriggerMarkPaid, StatePaid)

	return builder.Build(initial)
}
