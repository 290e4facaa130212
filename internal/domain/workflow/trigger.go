package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit           Trigger = "submit"
	TriggerAdvance          Trigger = "advance"
	TriggerFinalize         Trigger = "finalize"
	TriggerReject           Trigger = "reject"
	TriggerEditDuringReview Trigger = "edit_during_review"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
