package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/event"
)

// AuditRepository is the append-only audit trail. It implements both
// port.AuditRepository and port.AuditSink: the dispatcher feeds every domain
// event straight into Append.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append stores one domain event. Rows are never updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, evt *event.Event) error {
	var payload []byte
	if evt.Payload != nil {
		var err error
		payload, err = json.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, expense_id, rule_id, level, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, evt.ID, evt.Type.String(), evt.ExpenseID, evt.RuleID, evt.Level, string(payload), evt.Timestamp)
	if err != nil {
		r.logger.Error("Failed to append audit event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Record implements port.AuditSink
func (r *AuditRepository) Record(ctx context.Context, evt *event.Event) error {
	return r.Append(ctx, evt)
}

// GetByExpenseID returns the audit trail for one expense in emission order
func (r *AuditRepository) GetByExpenseID(ctx context.Context, expenseID string) ([]*event.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, expense_id, rule_id, level, payload, timestamp
		FROM audit_log WHERE expense_id = ? ORDER BY timestamp, id
	`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var evt event.Event
		var evtType, payload string
		var ruleID sql.NullString
		if err := rows.Scan(&evt.ID, &evtType, &evt.ExpenseID, &ruleID, &evt.Level, &payload, &evt.Timestamp); err != nil {
			return nil, err
		}
		evt.Type = event.Type(evtType)
		evt.RuleID = ruleID.String
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal event payload %s: %w", evt.ID, err)
			}
		}
		events = append(events, &evt)
	}
	return events, rows.Err()
}
