package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a trigger is not permitted in the
// current state
var ErrInvalidTransition = errors.New("invalid state transition")

// StateMachine tracks the current state and validates transitions against a
// configured transition table
type StateMachine struct {
	current     State
	transitions map[State]map[Trigger]State
}

// Builder accumulates transition configuration for a state machine
type Builder struct {
	transitions map[State]map[Trigger]State
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger]State)}
}

// Permit allows the trigger to move from one state to another. It panics on
// unknown states since the transition table is static program configuration.
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if b.transitions[from] == nil {
		b.transitions[from] = make(map[Trigger]State)
	}
	b.transitions[from][trigger] = to
	return b
}

// Build creates a state machine starting at the given state. The transition
// table is copied so the builder can be reused.
func (b *Builder) Build(initial State) *StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}
	copied := make(map[State]map[Trigger]State, len(b.transitions))
	for from, byTrigger := range b.transitions {
		inner := make(map[Trigger]State, len(byTrigger))
		for tr, to := range byTrigger {
			inner[tr] = to
		}
		copied[from] = inner
	}
	return &StateMachine{current: initial, transitions: copied}
}

// State returns the current state
func (m *StateMachine) State() State {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current state
func (m *StateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.current][trigger]
	return ok
}

// Fire executes the trigger, transitioning to the configured target state
func (m *StateMachine) Fire(trigger Trigger) error {
	to, ok := m.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

// PermittedTriggers returns all triggers that can fire in the current state
func (m *StateMachine) PermittedTriggers() []Trigger {
	byTrigger := m.transitions[m.current]
	triggers := make([]Trigger, 0, len(byTrigger))
	for tr := range byTrigger {
		triggers = append(triggers, tr)
	}
	return triggers
}

// NewApprovalStateMachine builds the transition table for the expense
// approval lifecycle and positions it at the given state.
func NewApprovalStateMachine(initial State) *StateMachine {
	return NewBuilder().
		Permit(StatePending, TriggerStart, StateInReview).
		Permit(StatePending, TriggerAutoApprove, StateApproved).
		Permit(StatePending, TriggerCancel, StateCancelled).
		Permit(StateInReview, TriggerApprove, StateApproved).
		Permit(StateInReview, TriggerReject, StateRejected).
		Permit(StateInReview, TriggerCancel, StateCancelled).
		Build(initial)
}
