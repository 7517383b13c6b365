package approval

import (
	"time"

	"github.com/garyjia/approval-engine/internal/domain/rule"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// LevelStatus tracks the runtime status of one planned level
type LevelStatus string

const (
	LevelInactive LevelStatus = "inactive"
	LevelActive   LevelStatus = "active"
	LevelApproved LevelStatus = "approved"
	LevelRejected LevelStatus = "rejected"
	// LevelSkipped marks a conditional level whose activation condition the
	// expense did not meet; it counts as approved with zero responses.
	LevelSkipped LevelStatus = "skipped"
)

// resolved approved means the level no longer blocks overall approval
func (s LevelStatus) resolvedApproved() bool {
	return s == LevelApproved || s == LevelSkipped
}

// LevelState is the runtime record for one level of the plan
type LevelState struct {
	Number    int         `json:"level"`
	Status    LevelStatus `json:"status"`
	Responses []Response  `json:"responses,omitempty"`
	Escalated bool        `json:"escalated"`
	Stalled   bool        `json:"stalled"`
	Deadline  *time.Time  `json:"deadline,omitempty"`
}

// EffectKind classifies a state change produced by a transition, so the
// caller can emit the matching audit event and drive collaborators.
type EffectKind string

const (
	EffectAutoApproved     EffectKind = "auto_approved"
	EffectLevelActivated   EffectKind = "level_activated"
	EffectResponseRecorded EffectKind = "response_recorded"
	EffectLevelResolved    EffectKind = "level_resolved"
	EffectEscalated        EffectKind = "escalated"
	EffectStalled          EffectKind = "stalled"
	EffectResolved         EffectKind = "resolved"
	EffectCancelled        EffectKind = "cancelled"
)

// Effect describes one observable state change
type Effect struct {
	Kind     EffectKind
	Level    int
	Outcome  LevelOutcome
	Status   workflow.State
	Response *Response
	Deadline time.Time
}

// State owns the approval lifecycle of one expense. It is mutated only by the
// transition methods below, applied one event at a time; replaying the same
// ordered event sequence against the same plan always yields the same final
// state. All methods are single-writer: callers serialize access per expense.
type State struct {
	ExpenseID string         `json:"expense_id"`
	Expense   rule.Expense   `json:"expense"`
	RuleID    string         `json:"rule_id"`
	Plan      Plan           `json:"plan"`
	Status    workflow.State `json:"status"`
	Levels    []LevelState   `json:"levels"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewState creates the runtime state for a freshly planned expense
func NewState(expense rule.Expense, plan Plan, now time.Time) *State {
	levels := make([]LevelState, len(plan.Levels))
	for i, lvl := range plan.Levels {
		levels[i] = LevelState{Number: lvl.Number, Status: LevelInactive}
	}
	return &State{
		ExpenseID: expense.ID,
		Expense:   expense,
		RuleID:    plan.RuleID,
		Plan:      plan,
		Status:    workflow.StatePending,
		Levels:    levels,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the overall status accepts no further mutation
func (s *State) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Escalated reports whether any active level has been escalated
func (s *State) Escalated() bool {
	for _, lvl := range s.Levels {
		if lvl.Status == LevelActive && lvl.Escalated {
			return true
		}
	}
	return false
}

// ActiveLevels returns the numbers of the currently active levels
func (s *State) ActiveLevels() []int {
	var active []int
	for _, lvl := range s.Levels {
		if lvl.Status == LevelActive {
			active = append(active, lvl.Number)
		}
	}
	return active
}

// levelState returns the runtime record for a level number, or nil
func (s *State) levelState(number int) *LevelState {
	if number < 1 || number > len(s.Levels) {
		return nil
	}
	return &s.Levels[number-1]
}

func (s *State) fire(trigger workflow.Trigger) error {
	m := workflow.NewApprovalStateMachine(s.Status)
	if err := m.Fire(trigger); err != nil {
		return err
	}
	s.Status = m.State()
	return nil
}

// Start begins executing the plan. A zero-level plan terminates immediately
// as approved. Sequential and conditional plans activate level 1 (skipping
// forward past unmet conditions); parallel plans activate every level, each
// with its own escalation deadline.
func (s *State) Start(now time.Time) []Effect {
	s.UpdatedAt = now

	if s.Plan.AutoApproved || len(s.Plan.Levels) == 0 {
		_ = s.fire(workflow.TriggerAutoApprove)
		return []Effect{
			{Kind: EffectAutoApproved},
			{Kind: EffectResolved, Status: s.Status},
		}
	}

	_ = s.fire(workflow.TriggerStart)

	var effects []Effect
	if s.Plan.WorkflowType == rule.WorkflowParallel {
		allResolved := true
		for i := range s.Levels {
			effects = append(effects, s.activateLevel(&s.Levels[i], now)...)
			if !s.Levels[i].Status.resolvedApproved() {
				allResolved = false
			}
		}
		if allResolved {
			_ = s.fire(workflow.TriggerApprove)
			effects = append(effects, Effect{Kind: EffectResolved, Status: s.Status})
		}
		return effects
	}

	return append(effects, s.activateFrom(1, now)...)
}

// activateLevel activates one level, or skips it when its activation
// condition is not met by the expense.
func (s *State) activateLevel(ls *LevelState, now time.Time) []Effect {
	planned := s.Plan.Level(ls.Number)
	if planned.Condition != nil && s.Expense.Amount < planned.Condition.MinAmount {
		ls.Status = LevelSkipped
		return []Effect{{Kind: EffectLevelResolved, Level: ls.Number, Outcome: OutcomeApproved}}
	}
	ls.Status = LevelActive
	eff := Effect{Kind: EffectLevelActivated, Level: ls.Number}
	if s.Plan.Escalation != nil && s.Plan.Escalation.Enabled {
		deadline := now.Add(s.Plan.Escalation.Timeout)
		ls.Deadline = &deadline
		eff.Deadline = deadline
	}
	return []Effect{eff}
}

// activateFrom walks a sequential/conditional plan starting at the given
// level, skipping levels whose conditions do not hold. Walking past the last
// level resolves the overall status as approved.
func (s *State) activateFrom(number int, now time.Time) []Effect {
	var effects []Effect
	for n := number; n <= len(s.Levels); n++ {
		ls := s.levelState(n)
		effects = append(effects, s.activateLevel(ls, now)...)
		if ls.Status == LevelActive {
			return effects
		}
	}
	_ = s.fire(workflow.TriggerApprove)
	return append(effects, Effect{Kind: EffectResolved, Status: s.Status})
}

// RecordResponse records or replaces one approver's response and re-evaluates
// the level threshold. Responses on terminal states, inactive or unknown
// levels, or from identities outside the level's approver list are silent
// no-ops returning no effects, since duplicates and stragglers are expected
// under at-least-once delivery.
func (s *State) RecordResponse(levelNumber int, approverID string, decision Decision, comment string, now time.Time) ([]Effect, error) {
	if s.IsTerminal() || !decision.IsValid() {
		return nil, nil
	}
	ls := s.levelState(levelNumber)
	if ls == nil || ls.Status != LevelActive {
		return nil, nil
	}
	planned := s.Plan.Level(levelNumber)
	if !planned.HasApprover(approverID) {
		return nil, nil
	}

	resp := Response{ApproverID: approverID, Decision: decision, Comment: comment, Timestamp: now}
	replaced := false
	for i := range ls.Responses {
		if ls.Responses[i].ApproverID == approverID {
			ls.Responses[i] = resp
			replaced = true
			break
		}
	}
	if !replaced {
		ls.Responses = append(ls.Responses, resp)
	}
	s.UpdatedAt = now
	effects := []Effect{{Kind: EffectResponseRecorded, Level: levelNumber, Response: &resp}}

	outcome, err := EvaluateLevel(*planned, ls.Responses)
	if err != nil {
		return effects, err
	}

	switch outcome {
	case OutcomePending:
		return effects, nil

	case OutcomeRejected:
		ls.Status = LevelRejected
		effects = append(effects, Effect{Kind: EffectLevelResolved, Level: levelNumber, Outcome: OutcomeRejected})
		// Rejection short-circuits: close all other active levels untouched.
		for i := range s.Levels {
			if s.Levels[i].Status == LevelActive {
				s.Levels[i].Status = LevelInactive
			}
		}
		_ = s.fire(workflow.TriggerReject)
		return append(effects, Effect{Kind: EffectResolved, Status: s.Status}), nil

	default: // OutcomeApproved
		ls.Status = LevelApproved
		effects = append(effects, Effect{Kind: EffectLevelResolved, Level: levelNumber, Outcome: OutcomeApproved})

		if s.Plan.WorkflowType == rule.WorkflowParallel {
			for _, lvl := range s.Levels {
				if !lvl.Status.resolvedApproved() {
					return effects, nil
				}
			}
			_ = s.fire(workflow.TriggerApprove)
			return append(effects, Effect{Kind: EffectResolved, Status: s.Status}), nil
		}
		return append(effects, s.activateFrom(levelNumber+1, now)...), nil
	}
}

// EscalationNeed describes what an escalation timeout should do to a level
type EscalationNeed int

const (
	// EscalationNone means the timeout is moot: the level is no longer
	// pending, or the rule carries no enabled escalation policy.
	EscalationNone EscalationNeed = iota
	// EscalationDue means the level should gain the escalation approver.
	EscalationDue
	// EscalationExhausted means the level already escalated once; a second
	// timeout surfaces a stalled approval for external intervention.
	EscalationExhausted
)

// EscalationState classifies what a timeout on the level should trigger.
// Callers resolve the escalation approver identity only when EscalationDue.
func (s *State) EscalationState(levelNumber int) EscalationNeed {
	if s.IsTerminal() {
		return EscalationNone
	}
	ls := s.levelState(levelNumber)
	if ls == nil || ls.Status != LevelActive {
		return EscalationNone
	}
	if s.Plan.Escalation == nil || !s.Plan.Escalation.Enabled {
		return EscalationNone
	}
	if ls.Escalated {
		return EscalationExhausted
	}
	return EscalationDue
}

// Escalate adds the resolved escalation approver to the level as an
// additional required approver and resets the deadline once. A level
// escalates at most once. The added approver augments the active set; the
// original approvers remain eligible.
func (s *State) Escalate(levelNumber int, approver PlannedApprover, now time.Time) []Effect {
	ls := s.levelState(levelNumber)
	planned := s.Plan.Level(levelNumber)
	if !planned.HasApprover(approver.UserID) {
		planned.Approvers = append(planned.Approvers, approver)
	}
	ls.Escalated = true
	deadline := now.Add(s.Plan.Escalation.Timeout)
	ls.Deadline = &deadline
	s.UpdatedAt = now
	return []Effect{{Kind: EffectEscalated, Level: levelNumber, Deadline: deadline}}
}

// MarkStalled records that a level timed out after already escalating
func (s *State) MarkStalled(levelNumber int, now time.Time) []Effect {
	ls := s.levelState(levelNumber)
	ls.Stalled = true
	s.UpdatedAt = now
	return []Effect{{Kind: EffectStalled, Level: levelNumber}}
}

// Cancel withdraws an expense from review, bypassing level progression. It is
// a silent no-op when the state is already terminal.
func (s *State) Cancel(now time.Time) []Effect {
	if s.IsTerminal() {
		return nil
	}
	for i := range s.Levels {
		if s.Levels[i].Status == LevelActive {
			s.Levels[i].Status = LevelInactive
		}
	}
	_ = s.fire(workflow.TriggerCancel)
	s.UpdatedAt = now
	return []Effect{{Kind: EffectCancelled, Status: s.Status}}
}
