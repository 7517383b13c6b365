package approval

import (
	"testing"

	"github.com/garyjia/approval-engine/internal/domain/rule"
)

func level(threshold rule.Threshold, approvers ...PlannedApprover) PlannedLevel {
	return PlannedLevel{Number: 1, Approvers: approvers, Threshold: threshold}
}

func approver(id string, required bool) PlannedApprover {
	return PlannedApprover{UserID: id, Role: rule.RoleSpecificUser, Required: required}
}

func approve(id string) Response {
	return Response{ApproverID: id, Decision: DecisionApprove}
}

func reject(id string) Response {
	return Response{ApproverID: id, Decision: DecisionReject}
}

func TestEvaluateLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     PlannedLevel
		responses []Response
		want      LevelOutcome
	}{
		{
			name:  "no responses pending",
			level: level(rule.Threshold{Type: rule.ThresholdAll}, approver("a", true), approver("b", true)),
			want:  OutcomePending,
		},
		{
			name:      "all requires every required approver",
			level:     level(rule.Threshold{Type: rule.ThresholdAll}, approver("a", true), approver("b", true)),
			responses: []Response{approve("a")},
			want:      OutcomePending,
		},
		{
			name:      "all satisfied",
			level:     level(rule.Threshold{Type: rule.ThresholdAll}, approver("a", true), approver("b", true)),
			responses: []Response{approve("a"), approve("b")},
			want:      OutcomeApproved,
		},
		{
			name:      "all ignores silent optional approver",
			level:     level(rule.Threshold{Type: rule.ThresholdAll}, approver("a", true), approver("b", false)),
			responses: []Response{approve("a")},
			want:      OutcomeApproved,
		},
		{
			name:      "required reject short-circuits",
			level:     level(rule.Threshold{Type: rule.ThresholdAll}, approver("a", true), approver("b", true)),
			responses: []Response{approve("b"), reject("a")},
			want:      OutcomeRejected,
		},
		{
			name:      "optional reject does not short-circuit",
			level:     level(rule.Threshold{Type: rule.ThresholdAll}, approver("a", true), approver("b", false)),
			responses: []Response{reject("b")},
			want:      OutcomePending,
		},
		{
			name:      "majority two of three",
			level:     level(rule.Threshold{Type: rule.ThresholdMajority}, approver("a", false), approver("b", false), approver("c", false)),
			responses: []Response{approve("a"), approve("b")},
			want:      OutcomeApproved,
		},
		{
			name:      "majority one of three pending",
			level:     level(rule.Threshold{Type: rule.ThresholdMajority}, approver("a", false), approver("b", false), approver("c", false)),
			responses: []Response{approve("a")},
			want:      OutcomePending,
		},
		{
			name:      "percentage 50 of four met by two",
			level:     level(rule.Threshold{Type: rule.ThresholdPercentage, Value: 50}, approver("a", false), approver("b", false), approver("c", false), approver("d", false)),
			responses: []Response{approve("a"), approve("b")},
			want:      OutcomeApproved,
		},
		{
			name:      "percentage 51 of four needs three",
			level:     level(rule.Threshold{Type: rule.ThresholdPercentage, Value: 51}, approver("a", false), approver("b", false), approver("c", false), approver("d", false)),
			responses: []Response{approve("a"), approve("b")},
			want:      OutcomePending,
		},
		{
			name:      "percentage 51 of four met by three",
			level:     level(rule.Threshold{Type: rule.ThresholdPercentage, Value: 51}, approver("a", false), approver("b", false), approver("c", false), approver("d", false)),
			responses: []Response{approve("a"), approve("b"), approve("c")},
			want:      OutcomeApproved,
		},
		{
			name:      "count threshold",
			level:     level(rule.Threshold{Type: rule.ThresholdCount, Value: 2}, approver("a", false), approver("b", false), approver("c", false)),
			responses: []Response{approve("c"), approve("a")},
			want:      OutcomeApproved,
		},
		{
			name:      "any satisfied by first approval",
			level:     level(rule.Threshold{Type: rule.ThresholdAny}, approver("a", false), approver("b", false)),
			responses: []Response{approve("b")},
			want:      OutcomeApproved,
		},
		{
			name:      "silence exhaustion rejects",
			level:     level(rule.Threshold{Type: rule.ThresholdCount, Value: 2}, approver("a", false), approver("b", false)),
			responses: []Response{approve("a"), reject("b")},
			want:      OutcomeRejected,
		},
		{
			name:      "duplicate responses counted once per approver",
			level:     level(rule.Threshold{Type: rule.ThresholdCount, Value: 2}, approver("a", false), approver("b", false), approver("c", false)),
			responses: []Response{approve("a"), approve("a")},
			want:      OutcomePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateLevel(tt.level, tt.responses)
			if err != nil {
				t.Fatalf("EvaluateLevel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// With one approver, all, majority, percentage 100, count 1, and any
// collapse into the same behavior.
func TestEvaluateLevelSingleApproverDegenerate(t *testing.T) {
	thresholds := []rule.Threshold{
		{Type: rule.ThresholdAll},
		{Type: rule.ThresholdMajority},
		{Type: rule.ThresholdPercentage, Value: 100},
		{Type: rule.ThresholdCount, Value: 1},
		{Type: rule.ThresholdAny},
	}

	for _, th := range thresholds {
		t.Run(string(th.Type), func(t *testing.T) {
			lvl := level(th, approver("solo", true))

			got, err := EvaluateLevel(lvl, []Response{approve("solo")})
			if err != nil {
				t.Fatalf("EvaluateLevel() error = %v", err)
			}
			if got != OutcomeApproved {
				t.Errorf("approve: EvaluateLevel() = %v, want approved", got)
			}

			got, err = EvaluateLevel(lvl, []Response{reject("solo")})
			if err != nil {
				t.Fatalf("EvaluateLevel() error = %v", err)
			}
			if got != OutcomeRejected {
				t.Errorf("reject: EvaluateLevel() = %v, want rejected", got)
			}
		})
	}
}

func TestEvaluateLevelUnknownThreshold(t *testing.T) {
	lvl := level(rule.Threshold{Type: "plurality"}, approver("a", false))
	_, err := EvaluateLevel(lvl, []Response{approve("a")})
	if err == nil {
		t.Fatal("expected error for unknown threshold type")
	}
}
