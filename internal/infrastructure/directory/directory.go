// Package directory resolves approver placeholders against the org chart
// stored in the employees table. The engine only sees the port.Directory
// interface, so org-chart changes never touch workflow logic.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// OrgDirectory implements port.Directory over the employee repository
type OrgDirectory struct {
	employees port.EmployeeRepository
	logger    *zap.Logger
}

// New creates a new org chart directory
func New(employees port.EmployeeRepository, logger *zap.Logger) *OrgDirectory {
	return &OrgDirectory{employees: employees, logger: logger}
}

// ResolveUser resolves a specific user ID to an identity
func (d *OrgDirectory) ResolveUser(ctx context.Context, userID string) (*port.Identity, error) {
	emp, err := d.employees.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", port.ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("directory lookup %s: %w", userID, err)
	}
	if !emp.Active {
		return nil, fmt.Errorf("%w: %s", port.ErrUserInactive, userID)
	}
	return identityOf(emp), nil
}

// ResolveRoleHolder resolves the identity occupying a role relative to the
// submitter: manager walks one step up the reporting chain, department-head
// looks within the submitter's department, cfo/ceo are company-wide.
func (d *OrgDirectory) ResolveRoleHolder(ctx context.Context, submitterID string, role rule.ApproverRole) (*port.Identity, error) {
	switch role {
	case rule.RoleManager:
		return d.resolveManager(ctx, submitterID)
	case rule.RoleDepartmentHead:
		return d.resolveDepartmentHead(ctx, submitterID)
	case rule.RoleCFO:
		return d.resolveOrgRole(ctx, entity.OrgRoleCFO)
	case rule.RoleCEO:
		return d.resolveOrgRole(ctx, entity.OrgRoleCEO)
	default:
		return nil, fmt.Errorf("%w: role %q is not resolvable relative to a submitter", port.ErrNoRoleHolder, role)
	}
}

func (d *OrgDirectory) resolveManager(ctx context.Context, submitterID string) (*port.Identity, error) {
	submitter, err := d.employees.GetByID(ctx, submitterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: submitter %s", port.ErrUserNotFound, submitterID)
		}
		return nil, fmt.Errorf("directory lookup %s: %w", submitterID, err)
	}
	if submitter.ManagerID == "" {
		return nil, fmt.Errorf("%w: %s has no manager", port.ErrNoRoleHolder, submitterID)
	}

	manager, err := d.employees.GetByID(ctx, submitter.ManagerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: manager %s of %s", port.ErrNoRoleHolder, submitter.ManagerID, submitterID)
		}
		return nil, fmt.Errorf("directory lookup %s: %w", submitter.ManagerID, err)
	}
	if !manager.Active {
		return nil, fmt.Errorf("%w: manager %s is inactive", port.ErrNoRoleHolder, manager.ID)
	}
	return identityOf(manager), nil
}

func (d *OrgDirectory) resolveDepartmentHead(ctx context.Context, submitterID string) (*port.Identity, error) {
	submitter, err := d.employees.GetByID(ctx, submitterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: submitter %s", port.ErrUserNotFound, submitterID)
		}
		return nil, fmt.Errorf("directory lookup %s: %w", submitterID, err)
	}

	head, err := d.employees.GetDepartmentHead(ctx, submitter.Department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: department %s has no head", port.ErrNoRoleHolder, submitter.Department)
		}
		return nil, fmt.Errorf("directory lookup department %s: %w", submitter.Department, err)
	}
	return identityOf(head), nil
}

func (d *OrgDirectory) resolveOrgRole(ctx context.Context, role string) (*port.Identity, error) {
	emp, err := d.employees.GetByOrgRole(ctx, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", port.ErrNoRoleHolder, role)
		}
		return nil, fmt.Errorf("directory lookup role %s: %w", role, err)
	}
	return identityOf(emp), nil
}

func identityOf(emp *entity.Employee) *port.Identity {
	return &port.Identity{
		UserID:     emp.ID,
		Name:       emp.Name,
		Email:      emp.Email,
		LarkOpenID: emp.LarkOpenID,
	}
}
