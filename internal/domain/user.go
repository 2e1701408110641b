package domain

import (
	"strings"
	"time"
)

// Role enumerates the capabilities a user signs in with.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEmployee   Role = "EMPLOYEE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// User is a member of the organization. Users are soft-deleted through Active.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InDepartment reports whether the user belongs to dept.
func (u User) InDepartment(dept string) bool {
	return u.Department != nil && *u.Department == dept
}

// MatchesHandle reports whether an @handle designates this user. The handle is
// compared case-insensitively against the first name and the full name with
// spaces removed.
func (u User) MatchesHandle(handle string) bool {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return false
	}
	if strings.EqualFold(handle, fields[0]) {
		return true
	}
	return strings.EqualFold(handle, strings.Join(fields, ""))
}
