package approval

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// Decision is an approver's verdict on a level
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid returns true if the decision is one of the defined constants
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Response is one recorded approver response. A second response from the same
// approver at the same level replaces the first rather than duplicating it.
type Response struct {
	ApproverID string    `json:"approver_id"`
	Decision   Decision  `json:"decision"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// LevelOutcome is the result of evaluating a level's threshold against the
// responses received so far
type LevelOutcome string

const (
	OutcomePending  LevelOutcome = "pending"
	OutcomeApproved LevelOutcome = "approved"
	OutcomeRejected LevelOutcome = "rejected"
)

// EvaluateLevel decides whether a level is satisfied, rejected, or still
// waiting. Precedence:
//
//  1. A reject from a required approver rejects the level immediately.
//  2. Otherwise the threshold is checked against distinct approve responses.
//  3. If the threshold is not met and every approver has responded, the level
//     is rejected; silence exhaustion never stalls.
//
// The level's threshold is assumed to have passed rule validation; an unknown
// threshold type at this point is a configuration-integrity fault and is
// surfaced as an error rather than coerced.
func EvaluateLevel(level PlannedLevel, responses []Response) (LevelOutcome, error) {
	byApprover := make(map[string]Response, len(responses))
	for _, resp := range responses {
		byApprover[resp.ApproverID] = resp
	}

	required := make(map[string]bool, len(level.Approvers))
	for _, a := range level.Approvers {
		if a.Required {
			required[a.UserID] = true
		}
	}

	approved := 0
	for _, resp := range byApprover {
		switch resp.Decision {
		case DecisionReject:
			if required[resp.ApproverID] {
				return OutcomeRejected, nil
			}
		case DecisionApprove:
			approved++
		}
	}

	total := len(level.Approvers)
	met := false
	switch level.Threshold.Type {
	case rule.ThresholdAll:
		// Every required approver must have approved; non-required approvers
		// may stay silent or reject without blocking.
		met = true
		for userID := range required {
			if resp, ok := byApprover[userID]; !ok || resp.Decision != DecisionApprove {
				met = false
				break
			}
		}
	case rule.ThresholdMajority:
		met = approved > total/2
	case rule.ThresholdPercentage:
		// Integer cross-multiplication avoids floating rounding.
		met = approved*100 >= level.Threshold.Value*total
	case rule.ThresholdCount:
		met = approved >= level.Threshold.Value
	case rule.ThresholdAny:
		met = approved >= 1
	default:
		return OutcomePending, fmt.Errorf("level %d: invalid threshold type %q", level.Number, level.Threshold.Type)
	}

	if met {
		return OutcomeApproved, nil
	}
	if len(byApprover) >= total {
		return OutcomeRejected, nil
	}
	return OutcomePending, nil
}
