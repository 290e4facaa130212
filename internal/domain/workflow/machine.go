package workflow

import "github.com/garyjia/sales-reports/internal/domain/entity"

// StateMachine represents a state machine that tracks current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// Fire attempts to execute the trigger on behalf of role, transitioning to the new state if allowed
	Fire(trigger Trigger, role entity.Role) (Transition, error)

	// PermittedTriggers returns all triggers role can fire in the current state
	PermittedTriggers(role entity.Role) []Trigger
}
