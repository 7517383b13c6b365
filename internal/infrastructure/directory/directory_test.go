package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// mockEmployeeRepo serves a fixed org chart
type mockEmployeeRepo struct {
	employees map[string]*entity.Employee
	byRole    map[string]*entity.Employee
	heads     map[string]*entity.Employee
}

func (m *mockEmployeeRepo) Create(ctx context.Context, emp *entity.Employee) error { return nil }

func (m *mockEmployeeRepo) GetByID(ctx context.Context, id string) (*entity.Employee, error) {
	if emp, ok := m.employees[id]; ok {
		return emp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEmployeeRepo) GetByOrgRole(ctx context.Context, role string) (*entity.Employee, error) {
	if emp, ok := m.byRole[role]; ok {
		return emp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEmployeeRepo) GetDepartmentHead(ctx context.Context, department string) (*entity.Employee, error) {
	if emp, ok := m.heads[department]; ok {
		return emp, nil
	}
	return nil, sql.ErrNoRows
}

func testOrgChart() *mockEmployeeRepo {
	alice := &entity.Employee{ID: "alice", Name: "Alice", Department: "engineering", ManagerID: "bob", Active: true}
	bob := &entity.Employee{ID: "bob", Name: "Bob", Department: "engineering", Active: true}
	head := &entity.Employee{ID: "head-1", Name: "Eng Head", Department: "engineering", Active: true}
	cfo := &entity.Employee{ID: "cfo-1", Name: "CFO", Active: true}
	ghostManaged := &entity.Employee{ID: "orphan", Name: "Orphan", Active: true}
	retiredBoss := &entity.Employee{ID: "carol", Name: "Carol", ManagerID: "dave", Active: true}
	dave := &entity.Employee{ID: "dave", Name: "Dave", Active: false}

	return &mockEmployeeRepo{
		employees: map[string]*entity.Employee{
			"alice": alice, "bob": bob, "orphan": ghostManaged, "carol": retiredBoss, "dave": dave,
		},
		byRole: map[string]*entity.Employee{entity.OrgRoleCFO: cfo},
		heads:  map[string]*entity.Employee{"engineering": head},
	}
}

func TestResolveUser(t *testing.T) {
	d := New(testOrgChart(), zap.NewNop())
	ctx := context.Background()

	t.Run("active user resolves", func(t *testing.T) {
		id, err := d.ResolveUser(ctx, "alice")
		if err != nil {
			t.Fatalf("ResolveUser() error = %v", err)
		}
		if id.UserID != "alice" || id.Name != "Alice" {
			t.Errorf("identity = %+v", id)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := d.ResolveUser(ctx, "nobody")
		if !errors.Is(err, port.ErrUserNotFound) {
			t.Errorf("error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		_, err := d.ResolveUser(ctx, "dave")
		if !errors.Is(err, port.ErrUserInactive) {
			t.Errorf("error = %v, want ErrUserInactive", err)
		}
	})
}

func TestResolveRoleHolder(t *testing.T) {
	d := New(testOrgChart(), zap.NewNop())
	ctx := context.Background()

	t.Run("manager walks reporting chain", func(t *testing.T) {
		id, err := d.ResolveRoleHolder(ctx, "alice", rule.RoleManager)
		if err != nil {
			t.Fatalf("ResolveRoleHolder() error = %v", err)
		}
		if id.UserID != "bob" {
			t.Errorf("manager = %s, want bob", id.UserID)
		}
	})

	t.Run("no manager configured", func(t *testing.T) {
		_, err := d.ResolveRoleHolder(ctx, "orphan", rule.RoleManager)
		if !errors.Is(err, port.ErrNoRoleHolder) {
			t.Errorf("error = %v, want ErrNoRoleHolder", err)
		}
	})

	t.Run("inactive manager is vacant", func(t *testing.T) {
		_, err := d.ResolveRoleHolder(ctx, "carol", rule.RoleManager)
		if !errors.Is(err, port.ErrNoRoleHolder) {
			t.Errorf("error = %v, want ErrNoRoleHolder", err)
		}
	})

	t.Run("department head via submitter department", func(t *testing.T) {
		id, err := d.ResolveRoleHolder(ctx, "alice", rule.RoleDepartmentHead)
		if err != nil {
			t.Fatalf("ResolveRoleHolder() error = %v", err)
		}
		if id.UserID != "head-1" {
			t.Errorf("head = %s, want head-1", id.UserID)
		}
	})

	t.Run("cfo is company wide", func(t *testing.T) {
		id, err := d.ResolveRoleHolder(ctx, "alice", rule.RoleCFO)
		if err != nil {
			t.Fatalf("ResolveRoleHolder() error = %v", err)
		}
		if id.UserID != "cfo-1" {
			t.Errorf("cfo = %s, want cfo-1", id.UserID)
		}
	})

	t.Run("vacant ceo", func(t *testing.T) {
		_, err := d.ResolveRoleHolder(ctx, "alice", rule.RoleCEO)
		if !errors.Is(err, port.ErrNoRoleHolder) {
			t.Errorf("error = %v, want ErrNoRoleHolder", err)
		}
	})

	t.Run("specific-user not resolvable as role", func(t *testing.T) {
		_, err := d.ResolveRoleHolder(ctx, "alice", rule.RoleSpecificUser)
		if !errors.Is(err, port.ErrNoRoleHolder) {
			t.Errorf("error = %v, want ErrNoRoleHolder", err)
		}
	})
}
