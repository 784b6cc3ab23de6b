package model

import "time"

// Library represents a tenant organization. Every catalog row in the system
// is scoped by LibraryID.
type Library struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"` // For optimistic locking
}

// Role is a membership role within a library.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleLibraryAdmin Role = "library_admin"
	RoleReader       Role = "reader"
)

// Valid reports whether r is a role that can be assigned to a membership.
// super_admin is a global user attribute, never a membership role.
func (r Role) Valid() bool {
	return r == RoleLibraryAdmin || r == RoleReader
}

// Membership links a user to a library with a role.
type Membership struct {
	LibraryID string    `json:"library_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
