package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles known to the directory.
type Role string

const (
	RoleUser     Role = "USER"
	RoleEngineer Role = "ENGINEER"
	RoleSupport  Role = "SUPPORT"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEngineer, RoleSupport, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the support organisation.
func (r Role) IsStaff() bool {
	return r == RoleEngineer || r == RoleSupport || r == RoleManager || r == RoleAdmin
}

// User is a directory record. Engineers are users with RoleEngineer.
type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	Active       bool
	Available    bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAssignable is the single eligibility predicate for routing: only
// active, available engineers receive tickets.
func IsAssignable(u *User) bool {
	return u != nil && u.Active && u.Available && u.Role == RoleEngineer
}

// CanViewAllTickets reports whether the role may read every ticket.
func (r Role) CanViewAllTickets() bool {
	return r == RoleSupport || r == RoleManager || r == RoleAdmin
}

// CanManageEngineers reports whether the role may change other users'
// availability and create accounts.
func (r Role) CanManageEngineers() bool {
	return r == RoleManager || r == RoleAdmin
}
