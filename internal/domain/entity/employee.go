package entity

import "time"

// Employee is one node of the org chart the directory resolves against
type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	LarkOpenID string    `json:"lark_open_id,omitempty"`
	Role       string    `json:"role"`
	Department string    `json:"department"`
	ManagerID  string    `json:"manager_id,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Org role constants for employees
const (
	OrgRoleEmployee       = "employee"
	OrgRoleManager        = "manager"
	OrgRoleDepartmentHead = "department-head"
	OrgRoleCFO            = "cfo"
	OrgRoleCEO            = "ceo"
)
