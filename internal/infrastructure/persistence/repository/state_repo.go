package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// StateRepository persists expense approval state snapshots as JSON. The
// engine holds the authoritative copy in memory; rows exist for restart
// recovery and read-side queries.
type StateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *sql.DB, logger *zap.Logger) *StateRepository {
	return &StateRepository{db: db, logger: logger}
}

// Save upserts the snapshot for one expense
func (r *StateRepository) Save(ctx context.Context, state *approval.State) error {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO approval_states (expense_id, rule_id, status, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(expense_id) DO UPDATE SET
			status = excluded.status,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, state.ExpenseID, state.RuleID, state.Status.String(), string(snapshot), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to save approval state",
			zap.String("expense_id", state.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to save approval state: %w", err)
	}
	return nil
}

// GetByExpenseID loads the snapshot for one expense
func (r *StateRepository) GetByExpenseID(ctx context.Context, expenseID string) (*approval.State, error) {
	var snapshot string
	err := r.db.QueryRowContext(ctx,
		"SELECT snapshot FROM approval_states WHERE expense_id = ?", expenseID,
	).Scan(&snapshot)
	if err != nil {
		return nil, err
	}

	var state approval.State
	if err := json.Unmarshal([]byte(snapshot), &state); err != nil {
		return nil, fmt.Errorf("unmarshal state snapshot %s: %w", expenseID, err)
	}
	return &state, nil
}

// ListInReview loads every non-terminal state for startup recovery
func (r *StateRepository) ListInReview(ctx context.Context) ([]*approval.State, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT snapshot FROM approval_states WHERE status IN (?, ?)",
		workflow.StatePending.String(), workflow.StateInReview.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list in-review states: %w", err)
	}
	defer rows.Close()

	var states []*approval.State
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, err
		}
		var state approval.State
		if err := json.Unmarshal([]byte(snapshot), &state); err != nil {
			return nil, fmt.Errorf("unmarshal state snapshot: %w", err)
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}
