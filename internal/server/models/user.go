// Package models defines the server-side domain entities persisted by the
// repositories.
package models

import "time"

// Role enumerates the access levels a user can hold.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a stored account. Email is unique and kept lowercase. PasswordHash
// is the bcrypt hash of the password and must never leave the server.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns the client-visible projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// PublicUser is the projection of a User that is safe to return to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Principal is the minimal authenticated identity attached to a request after
// the access guard verifies a token. It is produced only by the guard, never
// from client-supplied fields.
type Principal struct {
	ID   string
	Role Role
}
