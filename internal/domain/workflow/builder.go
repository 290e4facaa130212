package workflow

import (
	"fmt"
	"sort"

	"github.com/garyjia/sales-reports/internal/domain/entity"
)

// GuardFunc evaluates whether a transition is allowed for the acting role
type GuardFunc func(role entity.Role) bool

// RoleIs returns a guard that passes only for the given roles
func RoleIs(roles ...entity.Role) GuardFunc {
	return func(role entity.Role) bool {
		for _, r := range roles {
			if r == role {
				return true
			}
		}
		return false
	}
}

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates a new state machine instance with the given initial state
	Build(initialState State) (StateMachine, error)
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState State, effects ...Effect) StateConfiguration

	// PermitIf allows a trigger to transition to the target state if the guard condition passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc, effects ...Effect) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
	effects []Effect
}

type stateConfig struct {
	fromState   State
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configurations map[State]*stateConfig
}

type stateMachine struct {
	currentState   State
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[state] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial state.
// Unknown initial states come from stored data, so they are reported as errors rather than panics.
func (b *stateMachineBuilder) Build(initialState State) (StateMachine, error) {
	if !initialState.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initialState)
	}

	// Deep copy configurations so later Configure calls do not leak into built machines
	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition, len(config.transitions))
		for trigger, transitions := range config.transitions {
			copied := make([]transition, len(transitions))
			for i, t := range transitions {
				copied[i] = transition{
					toState: t.toState,
					guard:   t.guard,
					effects: append([]Effect(nil), t.effects...),
				}
			}
			transitionsCopy[trigger] = copied
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		currentState:   initialState,
		configurations: configsCopy,
	}, nil
}

// Permit allows a trigger to transition to the target state
func (c *stateConfig) Permit(trigger Trigger, toState State, effects ...Effect) StateConfiguration {
	return c.PermitIf(trigger, toState, nil, effects...)
}

// PermitIf allows a trigger to transition to the target state if the guard condition passes
func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc, effects ...Effect) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if c.fromState.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have outgoing transitions", c.fromState))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		toState: toState,
		guard:   guard,
		effects: effects,
	})

	return c
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(trigger Trigger, role entity.Role) (Transition, error) {
	t, ok, configured := m.resolve(trigger, role)
	if !configured {
		return Transition{}, fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}
	if !ok {
		return Transition{}, fmt.Errorf("%w: trigger %s from state %s for role %s", ErrGuardFailed, trigger, m.currentState, role)
	}

	result := Transition{
		Trigger: trigger,
		From:    m.currentState,
		To:      t.toState,
		Effects: append([]Effect(nil), t.effects...),
	}
	m.currentState = t.toState
	return result, nil
}

// PermittedTriggers returns all triggers role can fire in the current state, sorted by name
func (m *stateMachine) PermittedTriggers(role entity.Role) []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		if _, ok, _ := m.resolve(trigger, role); ok {
			triggers = append(triggers, trigger)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	return triggers
}

// resolve finds the first transition whose guard passes.
// configured is false when the trigger has no edge from the current state at all.
func (m *stateMachine) resolve(trigger Trigger, role entity.Role) (t transition, ok bool, configured bool) {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return transition{}, false, false
	}

	transitions, exists := config.transitions[trigger]
	if !exists || len(transitions) == 0 {
		return transition{}, false, false
	}

	for _, candidate := range transitions {
		if candidate.guard == nil || candidate.guard(role) {
			return candidate, true, true
		}
	}
	return transition{}, false, true
}
