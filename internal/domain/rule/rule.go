package rule

import (
	"fmt"
	"time"
)

// WorkflowType determines how approval levels are activated
type WorkflowType string

const (
	WorkflowSequential  WorkflowType = "sequential"
	WorkflowParallel    WorkflowType = "parallel"
	WorkflowConditional WorkflowType = "conditional"
)

var validWorkflowTypes = map[WorkflowType]bool{
	WorkflowSequential:  true,
	WorkflowParallel:    true,
	WorkflowConditional: true,
}

// IsValid returns true if the workflow type is one of the defined constants
func (t WorkflowType) IsValid() bool {
	return validWorkflowTypes[t]
}

// String returns the string representation of the workflow type
func (t WorkflowType) String() string {
	return string(t)
}

// ApproverRole identifies who fills an approver slot
type ApproverRole string

const (
	RoleManager        ApproverRole = "manager"
	RoleDepartmentHead ApproverRole = "department-head"
	RoleCFO            ApproverRole = "cfo"
	RoleCEO            ApproverRole = "ceo"
	RoleSpecificUser   ApproverRole = "specific-user"
)

var validApproverRoles = map[ApproverRole]bool{
	RoleManager:        true,
	RoleDepartmentHead: true,
	RoleCFO:            true,
	RoleCEO:            true,
	RoleSpecificUser:   true,
}

// IsValid returns true if the role is one of the defined constants
func (r ApproverRole) IsValid() bool {
	return validApproverRoles[r]
}

// String returns the string representation of the role
func (r ApproverRole) String() string {
	return string(r)
}

// ThresholdType determines how approver responses resolve a level
type ThresholdType string

const (
	ThresholdAll        ThresholdType = "all"
	ThresholdMajority   ThresholdType = "majority"
	ThresholdPercentage ThresholdType = "percentage"
	ThresholdCount      ThresholdType = "count"
	ThresholdAny        ThresholdType = "any"
)

var validThresholdTypes = map[ThresholdType]bool{
	ThresholdAll:        true,
	ThresholdMajority:   true,
	ThresholdPercentage: true,
	ThresholdCount:      true,
	ThresholdAny:        true,
}

// IsValid returns true if the threshold type is one of the defined constants
func (t ThresholdType) IsValid() bool {
	return validThresholdTypes[t]
}

// String returns the string representation of the threshold type
func (t ThresholdType) String() string {
	return string(t)
}

// Threshold is the approval policy for one level. Value is meaningful only for
// the percentage (1-100) and count (1..approvers) types.
type Threshold struct {
	Type  ThresholdType `json:"type"`
	Value int           `json:"value,omitempty"`
}

// Approver is one approver slot in a level. UserID is required when Role is
// specific-user and ignored otherwise.
type Approver struct {
	Role     ApproverRole `json:"role"`
	UserID   string       `json:"user_id,omitempty"`
	Required bool         `json:"required"`
}

// ActivationCondition gates a level in a conditional workflow. A nil condition
// means the level always activates.
type ActivationCondition struct {
	MinAmount float64 `json:"min_amount"`
}

// Level is one stage of approvals within a workflow definition
type Level struct {
	Number    int                  `json:"level"`
	Approvers []Approver           `json:"approvers"`
	Threshold Threshold            `json:"threshold"`
	Condition *ActivationCondition `json:"condition,omitempty"`
}

// RequiredCount returns the number of required approvers at this level
func (l Level) RequiredCount() int {
	n := 0
	for _, a := range l.Approvers {
		if a.Required {
			n++
		}
	}
	return n
}

// WorkflowDefinition is the ordered set of levels an expense must pass
type WorkflowDefinition struct {
	Type   WorkflowType `json:"type"`
	Levels []Level      `json:"levels"`
}

// Conditions restrict which expenses a rule applies to. Empty sets match
// everything; Amount.Max absent (nil) means unbounded.
type Conditions struct {
	MinAmount   float64  `json:"min_amount"`
	MaxAmount   *float64 `json:"max_amount,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Departments []string `json:"departments,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Submitters  []string `json:"submitters,omitempty"`
}

// AutoApproval bypasses the workflow entirely when its conditions hold
type AutoApproval struct {
	Enabled    bool     `json:"enabled"`
	MaxAmount  float64  `json:"max_amount"`
	Categories []string `json:"categories,omitempty"`
}

// Satisfied reports whether the expense qualifies for auto-approval
func (a *AutoApproval) Satisfied(amount float64, category string) bool {
	if a == nil || !a.Enabled {
		return false
	}
	if amount >= a.MaxAmount {
		return false
	}
	return len(a.Categories) == 0 || contains(a.Categories, category)
}

// Escalation adds an extra approver to a stalled level after a timeout
type Escalation struct {
	Enabled    bool          `json:"enabled"`
	EscalateTo ApproverRole  `json:"escalate_to"`
	Timeout    time.Duration `json:"timeout"`
}

// ApprovalRule is one configured approval policy. Lower Priority value wins
// during matching. Rules are frozen per in-flight expense: the matched rule is
// copied into the expense state at submission, so later edits never alter an
// approval already in review.
type ApprovalRule struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Priority     int                `json:"priority"`
	Active       bool               `json:"active"`
	Conditions   Conditions         `json:"conditions"`
	Workflow     WorkflowDefinition `json:"workflow"`
	AutoApproval *AutoApproval      `json:"auto_approval,omitempty"`
	Escalation   *Escalation        `json:"escalation,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Validate checks structural integrity at rule-save time. The engine assumes
// rules it receives have passed this check.
func (r *ApprovalRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name is required", r.ID)
	}
	if r.Conditions.MaxAmount != nil && *r.Conditions.MaxAmount < r.Conditions.MinAmount {
		return fmt.Errorf("rule %s: max amount %.2f below min amount %.2f",
			r.ID, *r.Conditions.MaxAmount, r.Conditions.MinAmount)
	}
	if !r.Workflow.Type.IsValid() {
		return fmt.Errorf("rule %s: unknown workflow type %q", r.ID, r.Workflow.Type)
	}
	if len(r.Workflow.Levels) == 0 {
		return fmt.Errorf("rule %s: workflow has no levels", r.ID)
	}
	for i, lvl := range r.Workflow.Levels {
		// Level numbers must be a contiguous range starting at 1
		if lvl.Number != i+1 {
			return fmt.Errorf("rule %s: level numbers must be contiguous from 1, got %d at position %d",
				r.ID, lvl.Number, i)
		}
		if err := validateLevel(lvl); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	if r.Escalation != nil && r.Escalation.Enabled {
		if !r.Escalation.EscalateTo.IsValid() || r.Escalation.EscalateTo == RoleSpecificUser {
			return fmt.Errorf("rule %s: escalation target must be a named role, got %q",
				r.ID, r.Escalation.EscalateTo)
		}
		if r.Escalation.Timeout <= 0 {
			return fmt.Errorf("rule %s: escalation timeout must be positive", r.ID)
		}
	}
	return nil
}

func validateLevel(lvl Level) error {
	if len(lvl.Approvers) == 0 {
		return fmt.Errorf("level %d: approver list is empty", lvl.Number)
	}
	for _, a := range lvl.Approvers {
		if !a.Role.IsValid() {
			return fmt.Errorf("level %d: unknown approver role %q", lvl.Number, a.Role)
		}
		if a.Role == RoleSpecificUser && a.UserID == "" {
			return fmt.Errorf("level %d: specific-user approver requires a user id", lvl.Number)
		}
	}
	t := lvl.Threshold
	if !t.Type.IsValid() {
		return fmt.Errorf("level %d: unknown threshold type %q", lvl.Number, t.Type)
	}
	switch t.Type {
	case ThresholdPercentage:
		if t.Value < 1 || t.Value > 100 {
			return fmt.Errorf("level %d: percentage threshold must be in 1..100, got %d", lvl.Number, t.Value)
		}
	case ThresholdCount:
		if t.Value < 1 || t.Value > len(lvl.Approvers) {
			return fmt.Errorf("level %d: count threshold must be in 1..%d, got %d",
				lvl.Number, len(lvl.Approvers), t.Value)
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
