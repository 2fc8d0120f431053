package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account kinds. Capability checks live on the type
// so callers never compare raw strings.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// ParseRole normalises raw input into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// CanPublishAvailability is true for roles that own a timetable.
func (r Role) CanPublishAvailability() bool { return r == RoleTeacher }

// CanBook is true for roles that may reserve lessons.
func (r Role) CanBook() bool { return r == RoleStudent }

// CanAssignWork is true for roles that hand out homework and cheat sheets.
func (r Role) CanAssignWork() bool { return r == RoleTeacher }

// Counterpart returns the role on the other side of a conversation.
func (r Role) Counterpart() Role {
	if r == RoleTeacher {
		return RoleStudent
	}
	return RoleTeacher
}

// User represents an account stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
