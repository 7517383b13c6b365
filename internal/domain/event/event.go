package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents one state transition of an expense's approval process.
// Events are append-only: the engine emits one per transition and a
// collaborator persists them for audit reconstruction.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	ExpenseID string                 `json:"expense_id"`
	RuleID    string                 `json:"rule_id,omitempty"`
	Level     int                    `json:"level,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// New creates a domain event with an auto-generated ID and timestamp
func New(eventType Type, expenseID, ruleID string, level int, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ExpenseID: expenseID,
		RuleID:    ruleID,
		Level:     level,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
