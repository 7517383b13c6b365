// Package planner expands a matched rule's workflow definition into a
// concrete plan, resolving approver placeholders into identities through the
// directory. Planning is all-or-nothing: any unresolvable approver fails the
// whole plan, so the engine never starts review against a partial plan.
package planner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// ErrorCode classifies planning failures
type ErrorCode string

const (
	CodeUnresolvedApprover ErrorCode = "UNRESOLVED_APPROVER"
	CodeNoHolderForRole    ErrorCode = "NO_HOLDER_FOR_ROLE"
	CodeEmptyLevel         ErrorCode = "EMPTY_LEVEL"
	CodeNoMatchingRule     ErrorCode = "NO_MATCHING_RULE"
)

// PlanningError is surfaced to the caller synchronously at submission time;
// the expense is not put into review until planning succeeds.
type PlanningError struct {
	Code   ErrorCode
	Level  int
	Detail string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Level > 0 {
		return fmt.Sprintf("planning failed (%s) at level %d: %s", e.Code, e.Level, e.Detail)
	}
	return fmt.Sprintf("planning failed (%s): %s", e.Code, e.Detail)
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

// AsPlanningError unwraps a PlanningError from an error chain
func AsPlanningError(err error) (*PlanningError, bool) {
	var pe *PlanningError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Planner builds concrete plans from rule workflow definitions
type Planner struct {
	directory port.Directory
	logger    *zap.Logger
}

// New creates a new Planner
func New(directory port.Directory, logger *zap.Logger) *Planner {
	return &Planner{directory: directory, logger: logger}
}

// BuildPlan concretizes the rule's workflow for one expense. Auto-approval
// conditions are evaluated first: when satisfied, the returned plan has zero
// levels and its AutoApproved marker set, so the state machine terminates as
// approved without activating any level.
func (p *Planner) BuildPlan(ctx context.Context, r *rule.ApprovalRule, expense rule.Expense) (*approval.Plan, error) {
	if r.AutoApproval.Satisfied(expense.Amount, expense.Category) {
		p.logger.Info("Auto-approval conditions satisfied",
			zap.String("expense_id", expense.ID),
			zap.String("rule_id", r.ID),
			zap.Float64("amount", expense.Amount))
		return &approval.Plan{
			RuleID:       r.ID,
			WorkflowType: r.Workflow.Type,
			AutoApproved: true,
		}, nil
	}

	plan := &approval.Plan{
		RuleID:       r.ID,
		WorkflowType: r.Workflow.Type,
		Levels:       make([]approval.PlannedLevel, 0, len(r.Workflow.Levels)),
		Escalation:   r.Escalation,
	}

	for _, lvl := range r.Workflow.Levels {
		planned, err := p.expandLevel(ctx, lvl, expense)
		if err != nil {
			return nil, err
		}
		plan.Levels = append(plan.Levels, *planned)
	}
	return plan, nil
}

// ResolveRole resolves one role holder relative to a submitter, mapping
// directory failures to the planning error taxonomy. Also used by the engine
// when escalation adds an approver to a stalled level.
func (p *Planner) ResolveRole(ctx context.Context, submitterID string, role rule.ApproverRole) (*port.Identity, error) {
	identity, err := p.directory.ResolveRoleHolder(ctx, submitterID, role)
	if err != nil {
		return nil, &PlanningError{
			Code:   CodeNoHolderForRole,
			Detail: fmt.Sprintf("role %s relative to %s: %v", role, submitterID, err),
			Err:    err,
		}
	}
	return identity, nil
}

func (p *Planner) expandLevel(ctx context.Context, lvl rule.Level, expense rule.Expense) (*approval.PlannedLevel, error) {
	planned := &approval.PlannedLevel{
		Number:    lvl.Number,
		Threshold: lvl.Threshold,
		Condition: lvl.Condition,
	}

	seen := make(map[string]int) // user ID -> index into planned.Approvers
	for _, spec := range lvl.Approvers {
		var identity *port.Identity
		var err error
		if spec.Role == rule.RoleSpecificUser {
			identity, err = p.directory.ResolveUser(ctx, spec.UserID)
			if err != nil {
				return nil, &PlanningError{
					Code:   CodeUnresolvedApprover,
					Level:  lvl.Number,
					Detail: fmt.Sprintf("user %s: %v", spec.UserID, err),
					Err:    err,
				}
			}
		} else {
			identity, err = p.directory.ResolveRoleHolder(ctx, expense.SubmitterID, spec.Role)
			if err != nil {
				return nil, &PlanningError{
					Code:   CodeNoHolderForRole,
					Level:  lvl.Number,
					Detail: fmt.Sprintf("role %s relative to %s: %v", spec.Role, expense.SubmitterID, err),
					Err:    err,
				}
			}
		}

		// Two specs resolving to the same person collapse into one slot;
		// required wins over optional.
		if idx, ok := seen[identity.UserID]; ok {
			if spec.Required {
				planned.Approvers[idx].Required = true
			}
			continue
		}
		seen[identity.UserID] = len(planned.Approvers)
		planned.Approvers = append(planned.Approvers, approval.PlannedApprover{
			UserID:   identity.UserID,
			Name:     identity.Name,
			Role:     spec.Role,
			Required: spec.Required,
		})
	}

	// The plan must never contain an unsatisfiable level.
	if len(planned.Approvers) == 0 {
		return nil, &PlanningError{
			Code:   CodeEmptyLevel,
			Level:  lvl.Number,
			Detail: "no resolvable approvers after expansion",
		}
	}
	return planned, nil
}
