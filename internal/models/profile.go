package models

import (
	"strings"
	"time"
)

// Profile is the public face of a user.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Role      Role      `db:"role" json:"role"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Bio       string    `db:"bio" json:"bio,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName joins first and last name, falling back to the id.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.ID
	}
	return name
}

// UpdateProfileRequest edits the caller's own profile.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Bio       string `json:"bio" validate:"omitempty,max=2000"`
}
