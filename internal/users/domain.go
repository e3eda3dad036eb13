package users

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the closed set of permitted account roles.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleLabManager Role = "lab_manager"
	RoleInstructor Role = "instructor"
	RoleLabStaff   Role = "lab_staff"
	RoleStudent    Role = "student"
)

// AllRoles lists the valid roles in canonical order.
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleLabManager, RoleInstructor, RoleLabStaff, RoleStudent}
}

// ParseRole maps a raw value onto the role enum. No coercion: anything
// outside the closed set is rejected.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleSuperAdmin, RoleAdmin, RoleLabManager, RoleInstructor, RoleLabStaff, RoleStudent:
		return Role(value), true
	}
	return "", false
}

// IsStaff reports whether the role requires an employee ID during
// registration and profile completion.
func (r Role) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleLabManager, RoleInstructor, RoleLabStaff:
		return true
	}
	return false
}

// DisplayName returns the human readable label used on exports.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleLabManager:
		return "Lab Manager"
	case RoleInstructor:
		return "Instructor"
	case RoleLabStaff:
		return "Lab Staff"
	case RoleStudent:
		return "Student"
	}
	return string(r)
}

// User represents a managed account in the administration console.
type User struct {
	ID                    uuid.UUID
	Email                 string
	FirstName             string
	LastName              string
	Role                  Role
	Department            string
	EmployeeID            string
	StudentID             string
	PhoneNumber           string
	AuthProvider          string
	IsActive              bool
	EmailVerified         bool
	ProfileCompleted      bool
	RegistrationCompleted bool
	CreatedAt             time.Time
	LastLogin             *time.Time
	UpdatedAt             time.Time
}

// ImportRecord is one validated row from an import batch. Optional fields
// stay empty strings; persistence maps them to NULL.
type ImportRecord struct {
	Email       string
	FirstName   string
	LastName    string
	Role        Role
	Department  string
	EmployeeID  string
	StudentID   string
	PhoneNumber string
}
