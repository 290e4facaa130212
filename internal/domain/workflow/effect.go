package workflow

// Effect is a side effect the caller applies to the entity when a transition fires
type Effect string

const (
	EffectClearRejectionReason  Effect = "clear_rejection_reason"
	EffectRecordRejectionReason Effect = "record_rejection_reason"
	EffectStampSubmittedAt      Effect = "stamp_submitted_at"
	EffectStampApprovedAt       Effect = "stamp_approved_at"
	EffectApplyContent          Effect = "apply_content"
)

// Transition is the result of a successful Fire
type Transition struct {
	Trigger Trigger
	From    State
	To      State
	Effects []Effect
}

// Has reports whether the transition carries the given effect
func (t Transition) Has(effect Effect) bool {
	for _, e := range t.Effects {
		if e == effect {
			return true
		}
	}
	return false
}
