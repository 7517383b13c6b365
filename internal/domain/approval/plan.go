package approval

import (
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// PlannedApprover is an approver slot with its placeholder resolved to a
// concrete identity from the directory.
type PlannedApprover struct {
	UserID   string            `json:"user_id"`
	Name     string            `json:"name,omitempty"`
	Role     rule.ApproverRole `json:"role"`
	Required bool              `json:"required"`
}

// PlannedLevel is one concrete level of a plan
type PlannedLevel struct {
	Number    int                       `json:"level"`
	Approvers []PlannedApprover         `json:"approvers"`
	Threshold rule.Threshold            `json:"threshold"`
	Condition *rule.ActivationCondition `json:"condition,omitempty"`
}

// HasApprover reports whether the identity is a member of this level
func (l PlannedLevel) HasApprover(userID string) bool {
	for _, a := range l.Approvers {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// Plan is the concretized workflow for one expense. A zero-level plan with
// AutoApproved set means the expense bypasses review entirely.
type Plan struct {
	RuleID       string            `json:"rule_id"`
	WorkflowType rule.WorkflowType `json:"workflow_type"`
	Levels       []PlannedLevel    `json:"levels"`
	AutoApproved bool              `json:"auto_approved"`
	Escalation   *rule.Escalation  `json:"escalation,omitempty"`
}

// Level returns the planned level with the given number, or nil
func (p *Plan) Level(number int) *PlannedLevel {
	if number < 1 || number > len(p.Levels) {
		return nil
	}
	return &p.Levels[number-1]
}
