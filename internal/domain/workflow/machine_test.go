package workflow

import (
	"errors"
	"testing"
)

func TestApprovalStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{name: "pending starts review", from: StatePending, trigger: TriggerStart, want: StateInReview},
		{name: "pending auto-approves", from: StatePending, trigger: TriggerAutoApprove, want: StateApproved},
		{name: "pending cancels", from: StatePending, trigger: TriggerCancel, want: StateCancelled},
		{name: "in review approves", from: StateInReview, trigger: TriggerApprove, want: StateApproved},
		{name: "in review rejects", from: StateInReview, trigger: TriggerReject, want: StateRejected},
		{name: "in review cancels", from: StateInReview, trigger: TriggerCancel, want: StateCancelled},
		{name: "pending cannot approve directly", from: StatePending, trigger: TriggerApprove, wantErr: true},
		{name: "in review cannot restart", from: StateInReview, trigger: TriggerStart, wantErr: true},
		{name: "approved is terminal", from: StateApproved, trigger: TriggerCancel, wantErr: true},
		{name: "rejected is terminal", from: StateRejected, trigger: TriggerApprove, wantErr: true},
		{name: "cancelled is terminal", from: StateCancelled, trigger: TriggerStart, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewApprovalStateMachine(tt.from)
			err := m.Fire(tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
				}
				if m.State() != tt.from {
					t.Errorf("state changed on failed transition: %s", m.State())
				}
				return
			}
			if err != nil {
				t.Fatalf("Fire() error = %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %s, want %s", m.State(), tt.want)
			}
		})
	}
}

func TestTerminalStatesPermitNothing(t *testing.T) {
	for _, s := range []State{StateApproved, StateRejected, StateCancelled} {
		m := NewApprovalStateMachine(s)
		if got := m.PermittedTriggers(); len(got) != 0 {
			t.Errorf("state %s permits %v, want none", s, got)
		}
		if !s.IsTerminal() {
			t.Errorf("state %s should be terminal", s)
		}
	}
}

func TestCanFire(t *testing.T) {
	m := NewApprovalStateMachine(StatePending)
	if !m.CanFire(TriggerStart) {
		t.Error("CanFire(START) = false from PENDING")
	}
	if m.CanFire(TriggerReject) {
		t.Error("CanFire(REJECT) = true from PENDING")
	}
}
