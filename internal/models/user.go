// Package models defines the data structures that map to database tables
// and the error kinds shared by the publication services.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the system.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleReader Role = "reader"
)

// IsStaff returns true for roles allowed to author, publish and moderate.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEditor
}

// User is a site account. Staff accounts must complete TOTP 2FA before
// using the admin API; readers only need a password to like and submit.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize the hash
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	TOTPSecret   *string   `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Needs2FA returns true if the user is staff and must verify a TOTP code
// before the session is trusted for admin actions.
func (u *User) Needs2FA() bool {
	return u.Role.IsStaff()
}

// Needs2FASetup returns true if a staff user has not enrolled in TOTP yet.
func (u *User) Needs2FASetup() bool {
	return u.Needs2FA() && !u.TOTPEnabled
}
