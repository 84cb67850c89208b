package model

import (
	"net/mail"
	"strings"
	"time"
)

// Role is a user's global permission level.
type Role string

// Role constants, most privileged first.
const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleMember         Role = "member"
	RoleViewer         Role = "viewer"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Privileged reports whether r may see and manage every project.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleProjectManager
}

// ParseRole maps a role string to a Role. Unrecognized input yields
// RoleViewer and false so callers fall back to the most restrictive role.
func ParseRole(s string) (Role, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if norm == "manager" {
		norm = string(RoleProjectManager)
	}
	r := Role(norm)
	if !r.Valid() {
		return RoleViewer, false
	}
	return r, true
}

// UserStatus is whether an account may sign in.
type UserStatus string

// User status constants.
const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// User is an account that can own, manage or join projects.
type User struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	Role         Role       `json:"role" db:"role"`
	PasswordHash string     `json:"password_hash,omitempty" db:"password_hash"`
	Status       UserStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

func (u User) GetID() string { return u.ID }

func (u User) WithID(id string) User {
	u.ID = id
	return u
}

// Public returns a copy of u without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// EmailKey is the case-insensitive uniqueness key for u's email.
func (u User) EmailKey() string {
	return strings.ToLower(strings.TrimSpace(u.Email))
}

// Validate checks the user's own invariants. Email uniqueness is
// enforced by the store's unique index.
func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalid("user", "name", "must not be empty")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return invalid("user", "email", "%q is not a valid address", u.Email)
	}
	if !u.Role.Valid() {
		return invalid("user", "role", "unknown role %q", u.Role)
	}
	if u.Status != UserActive && u.Status != UserInactive {
		return invalid("user", "status", "unknown status %q", u.Status)
	}
	return nil
}
