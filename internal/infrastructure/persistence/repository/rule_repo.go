package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// ruleDefinition is the JSON-encoded portion of a rule row. Identity,
// priority, and activity live in dedicated columns for indexed matching.
type ruleDefinition struct {
	Conditions   rule.Conditions         `json:"conditions"`
	Workflow     rule.WorkflowDefinition `json:"workflow"`
	AutoApproval *rule.AutoApproval      `json:"auto_approval,omitempty"`
	Escalation   *rule.Escalation        `json:"escalation,omitempty"`
}

// RuleRepository handles approval rule database operations
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

// Create validates and stores a new approval rule. Threshold and level
// integrity is enforced here, at save time; the engine assumes stored rules
// are well-formed.
func (r *RuleRepository) Create(ctx context.Context, ar *rule.ApprovalRule) error {
	if err := ar.Validate(); err != nil {
		return fmt.Errorf("rule validation: %w", err)
	}

	def, err := json.Marshal(ruleDefinition{
		Conditions:   ar.Conditions,
		Workflow:     ar.Workflow,
		AutoApproval: ar.AutoApproval,
		Escalation:   ar.Escalation,
	})
	if err != nil {
		return fmt.Errorf("marshal rule definition: %w", err)
	}

	now := time.Now().UTC()
	if ar.CreatedAt.IsZero() {
		ar.CreatedAt = now
	}
	ar.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO approval_rules (id, name, priority, active, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ar.ID, ar.Name, ar.Priority, boolToInt(ar.Active), string(def), ar.CreatedAt, ar.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.String("rule_id", ar.ID), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule by its ID
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*rule.ApprovalRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, priority, active, definition, created_at, updated_at
		FROM approval_rules WHERE id = ?
	`, id)
	return scanRule(row)
}

// List retrieves all rules ordered by priority
func (r *RuleRepository) List(ctx context.Context) ([]rule.ApprovalRule, error) {
	return r.list(ctx, `
		SELECT id, name, priority, active, definition, created_at, updated_at
		FROM approval_rules ORDER BY priority, created_at, id
	`)
}

// ListActive retrieves active rules ordered by priority
func (r *RuleRepository) ListActive(ctx context.Context) ([]rule.ApprovalRule, error) {
	return r.list(ctx, `
		SELECT id, name, priority, active, definition, created_at, updated_at
		FROM approval_rules WHERE active = 1 ORDER BY priority, created_at, id
	`)
}

// Deactivate marks a rule inactive. In-flight expenses keep the plan they
// were submitted with; deactivation only affects future matching.
func (r *RuleRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE approval_rules SET active = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *RuleRepository) list(ctx context.Context, query string) ([]rule.ApprovalRule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []rule.ApprovalRule
	for rows.Next() {
		ar, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *ar)
	}
	return rules, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row scanner) (*rule.ApprovalRule, error) {
	var ar rule.ApprovalRule
	var active int
	var def string

	err := row.Scan(&ar.ID, &ar.Name, &ar.Priority, &active, &def, &ar.CreatedAt, &ar.UpdatedAt)
	if err != nil {
		return nil, err
	}

	var parsed ruleDefinition
	if err := json.Unmarshal([]byte(def), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal rule definition %s: %w", ar.ID, err)
	}
	ar.Active = active != 0
	ar.Conditions = parsed.Conditions
	ar.Workflow = parsed.Workflow
	ar.AutoApproval = parsed.AutoApproval
	ar.Escalation = parsed.Escalation
	return &ar, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
