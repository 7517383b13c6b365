// Package engine owns the approval lifecycle of submitted expenses: rule
// matching, plan execution, response handling, escalation, and cancellation.
// All mutations to one expense's state are serialized behind a per-expense
// lock; different expenses proceed in parallel with no shared mutable state.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/rule"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// ErrUnknownExpense is returned when an operation references an expense the
// engine has never seen
var ErrUnknownExpense = errors.New("unknown expense")

// Snapshot is a read-only view of one expense's approval state
type Snapshot struct {
	ExpenseID    string                `json:"expense_id"`
	RuleID       string                `json:"rule_id"`
	Status       workflow.State        `json:"status"`
	ActiveLevels []int                 `json:"active_levels,omitempty"`
	Escalated    bool                  `json:"escalated"`
	Levels       []approval.LevelState `json:"levels"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Engine is the approval rule engine's public surface. Responses and
// cancellations on terminal or unknown levels are silent no-ops returning the
// current snapshot; only planning failures and configuration-integrity faults
// surface as errors.
type Engine interface {
	// Submit matches a rule for the expense, builds the concrete plan, and
	// starts review. Returns a terminal-approved snapshot when auto-approval
	// applies, and a PlanningError when no plan can be built.
	Submit(ctx context.Context, expense rule.Expense, rules []rule.ApprovalRule) (*Snapshot, error)

	// Respond records one approver's decision at a level
	Respond(ctx context.Context, expenseID string, level int, approverID string, decision approval.Decision, comment string) (*Snapshot, error)

	// Escalate handles an escalation timeout for a level, driven by the
	// external scheduler
	Escalate(ctx context.Context, expenseID string, level int) (*Snapshot, error)

	// Cancel withdraws an expense from review
	Cancel(ctx context.Context, expenseID string) (*Snapshot, error)

	// GetState returns the current approval state for an expense
	GetState(ctx context.Context, expenseID string) (*approval.State, error)

	// Restore reloads in-flight states from the repository and reschedules
	// their escalation deadlines; called once at startup.
	Restore(ctx context.Context) error
}

func snapshotOf(st *approval.State) *Snapshot {
	levels := make([]approval.LevelState, len(st.Levels))
	copy(levels, st.Levels)
	return &Snapshot{
		ExpenseID:    st.ExpenseID,
		RuleID:       st.RuleID,
		Status:       st.Status,
		ActiveLevels: st.ActiveLevels(),
		Escalated:    st.Escalated(),
		Levels:       levels,
		UpdatedAt:    st.UpdatedAt,
	}
}
