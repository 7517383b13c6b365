package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

const employeeColumns = "id, name, email, lark_open_id, role, department, manager_id, active, created_at, updated_at"

// EmployeeRepository handles org chart database operations
type EmployeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB, logger *zap.Logger) *EmployeeRepository {
	return &EmployeeRepository{db: db, logger: logger}
}

// Create stores a new employee
func (r *EmployeeRepository) Create(ctx context.Context, emp *entity.Employee) error {
	now := time.Now().UTC()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	emp.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, emp.ID, emp.Name, emp.Email, emp.LarkOpenID, emp.Role, emp.Department,
		emp.ManagerID, boolToInt(emp.Active), emp.CreatedAt, emp.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create employee", zap.String("id", emp.ID), zap.Error(err))
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// GetByID retrieves an employee by ID
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*entity.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	return scanEmployee(row)
}

// GetByOrgRole retrieves the active holder of a company-wide role (cfo, ceo).
// Deterministic when misconfigured with duplicates: lowest ID wins.
func (r *EmployeeRepository) GetByOrgRole(ctx context.Context, role string) (*entity.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE role = ? AND active = 1 ORDER BY id LIMIT 1", role)
	return scanEmployee(row)
}

// GetDepartmentHead retrieves the active head of a department
func (r *EmployeeRepository) GetDepartmentHead(ctx context.Context, department string) (*entity.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+` FROM employees
		 WHERE department = ? AND role = ? AND active = 1 ORDER BY id LIMIT 1`,
		department, entity.OrgRoleDepartmentHead)
	return scanEmployee(row)
}

func scanEmployee(row *sql.Row) (*entity.Employee, error) {
	var emp entity.Employee
	var email, openID, managerID sql.NullString
	var active int

	err := row.Scan(&emp.ID, &emp.Name, &email, &openID, &emp.Role, &emp.Department,
		&managerID, &active, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	emp.Email = email.String
	emp.LarkOpenID = openID.String
	emp.ManagerID = managerID.String
	emp.Active = active != 0
	return &emp, nil
}
