package workflow

import "github.com/garyjia/sales-reports/internal/domain/entity"

// State represents a report status in the review lifecycle
type State string

const (
	StateDraft              State = entity.StatusDraft
	StatePendingSubdistrict State = entity.StatusPendingSubdistrict
	StatePendingCity        State = entity.StatusPendingCity
	StateApproved           State = entity.StatusApproved
	StateRejected           State = entity.StatusRejected
)

var validStates = map[State]bool{
	StateDraft:              true,
	StatePendingSubdistrict: true,
	StatePendingCity:        true,
	StateApproved:           true,
	StateRejected:           true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid report status
func (s State) IsValid() bool {
	return validStates[s]
}
