package rule

import (
	"testing"
	"time"
)

func validRule() *ApprovalRule {
	return &ApprovalRule{
		ID:       "r-1",
		Name:     "standard approval",
		Priority: 10,
		Active:   true,
		Workflow: WorkflowDefinition{
			Type: WorkflowSequential,
			Levels: []Level{
				{
					Number:    1,
					Approvers: []Approver{{Role: RoleManager, Required: true}},
					Threshold: Threshold{Type: ThresholdAll},
				},
				{
					Number: 2,
					Approvers: []Approver{
						{Role: RoleCFO, Required: true},
						{Role: RoleSpecificUser, UserID: "u-7"},
					},
					Threshold: Threshold{Type: ThresholdAny},
				},
			},
		},
	}
}

func TestApprovalRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ApprovalRule)
		wantErr bool
	}{
		{
			name:    "valid rule",
			mutate:  func(r *ApprovalRule) {},
			wantErr: false,
		},
		{
			name:    "missing id",
			mutate:  func(r *ApprovalRule) { r.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing name",
			mutate:  func(r *ApprovalRule) { r.Name = "" },
			wantErr: true,
		},
		{
			name: "max amount below min amount",
			mutate: func(r *ApprovalRule) {
				r.Conditions = Conditions{MinAmount: 100, MaxAmount: floatPtr(50)}
			},
			wantErr: true,
		},
		{
			name:    "unknown workflow type",
			mutate:  func(r *ApprovalRule) { r.Workflow.Type = "round-robin" },
			wantErr: true,
		},
		{
			name:    "no levels",
			mutate:  func(r *ApprovalRule) { r.Workflow.Levels = nil },
			wantErr: true,
		},
		{
			name:    "non-contiguous level numbers",
			mutate:  func(r *ApprovalRule) { r.Workflow.Levels[1].Number = 3 },
			wantErr: true,
		},
		{
			name:    "levels not starting at 1",
			mutate:  func(r *ApprovalRule) { r.Workflow.Levels[0].Number = 0 },
			wantErr: true,
		},
		{
			name:    "empty approver list",
			mutate:  func(r *ApprovalRule) { r.Workflow.Levels[0].Approvers = nil },
			wantErr: true,
		},
		{
			name: "unknown approver role",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[0].Approvers[0].Role = "intern"
			},
			wantErr: true,
		},
		{
			name: "specific user without user id",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[1].Approvers[1].UserID = ""
			},
			wantErr: true,
		},
		{
			name: "unknown threshold type",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[0].Threshold.Type = "plurality"
			},
			wantErr: true,
		},
		{
			name: "percentage zero",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[0].Threshold = Threshold{Type: ThresholdPercentage, Value: 0}
			},
			wantErr: true,
		},
		{
			name: "percentage above 100",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[0].Threshold = Threshold{Type: ThresholdPercentage, Value: 101}
			},
			wantErr: true,
		},
		{
			name: "percentage boundary values valid",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[0].Threshold = Threshold{Type: ThresholdPercentage, Value: 100}
				r.Workflow.Levels[1].Threshold = Threshold{Type: ThresholdPercentage, Value: 1}
			},
			wantErr: false,
		},
		{
			name: "count exceeding approver list",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[0].Threshold = Threshold{Type: ThresholdCount, Value: 2}
			},
			wantErr: true,
		},
		{
			name: "count within approver list valid",
			mutate: func(r *ApprovalRule) {
				r.Workflow.Levels[1].Threshold = Threshold{Type: ThresholdCount, Value: 2}
			},
			wantErr: false,
		},
		{
			name: "escalation to specific user invalid",
			mutate: func(r *ApprovalRule) {
				r.Escalation = &Escalation{Enabled: true, EscalateTo: RoleSpecificUser, Timeout: time.Hour}
			},
			wantErr: true,
		},
		{
			name: "escalation without positive timeout",
			mutate: func(r *ApprovalRule) {
				r.Escalation = &Escalation{Enabled: true, EscalateTo: RoleCFO}
			},
			wantErr: true,
		},
		{
			name: "disabled escalation skips checks",
			mutate: func(r *ApprovalRule) {
				r.Escalation = &Escalation{Enabled: false}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAutoApprovalSatisfied(t *testing.T) {
	tests := []struct {
		name     string
		auto     *AutoApproval
		amount   float64
		category string
		want     bool
	}{
		{
			name: "amount strictly below max qualifies",
			auto: &AutoApproval{Enabled: true, MaxAmount: 100},
			// Amount exactly at the limit goes through normal review.
			amount: 50,
			want:   true,
		},
		{
			name:   "amount at max does not qualify",
			auto:   &AutoApproval{Enabled: true, MaxAmount: 100},
			amount: 100,
			want:   false,
		},
		{
			name:     "category outside list",
			auto:     &AutoApproval{Enabled: true, MaxAmount: 100, Categories: []string{"meals"}},
			amount:   50,
			category: "travel",
			want:     false,
		},
		{
			name:     "category inside list",
			auto:     &AutoApproval{Enabled: true, MaxAmount: 100, Categories: []string{"meals"}},
			amount:   50,
			category: "meals",
			want:     true,
		},
		{
			name:   "disabled never qualifies",
			auto:   &AutoApproval{Enabled: false, MaxAmount: 100},
			amount: 1,
			want:   false,
		},
		{
			name:   "nil never qualifies",
			auto:   nil,
			amount: 1,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auto.Satisfied(tt.amount, tt.category); got != tt.want {
				t.Errorf("Satisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}
