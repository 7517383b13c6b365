package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// RuleRepository defines persistence operations for ApprovalRule
type RuleRepository interface {
	Create(ctx context.Context, r *rule.ApprovalRule) error
	GetByID(ctx context.Context, id string) (*rule.ApprovalRule, error)
	List(ctx context.Context) ([]rule.ApprovalRule, error)
	ListActive(ctx context.Context) ([]rule.ApprovalRule, error)
	Deactivate(ctx context.Context, id string) error
}

// StateRepository persists expense approval state snapshots. The engine saves
// a snapshot after every mutation and reloads in-flight states on startup.
type StateRepository interface {
	Save(ctx context.Context, state *approval.State) error
	GetByExpenseID(ctx context.Context, expenseID string) (*approval.State, error)
	ListInReview(ctx context.Context) ([]*approval.State, error)
}

// EmployeeRepository defines persistence operations for the org chart
type EmployeeRepository interface {
	Create(ctx context.Context, emp *entity.Employee) error
	GetByID(ctx context.Context, id string) (*entity.Employee, error)
	GetByOrgRole(ctx context.Context, role string) (*entity.Employee, error)
	GetDepartmentHead(ctx context.Context, department string) (*entity.Employee, error)
}

// AuditRepository persists domain events append-only
type AuditRepository interface {
	Append(ctx context.Context, evt *event.Event) error
	GetByExpenseID(ctx context.Context, expenseID string) ([]*event.Event, error)
}
