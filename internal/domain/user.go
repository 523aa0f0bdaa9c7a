package domain

import "time"

// Well-known role names. Roles are free-form strings; only "admin" carries
// special meaning to the authorization guard and the last-admin invariant.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string // argon2id encoded
	Role          string
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
}

// IsAdmin reports whether the user carries the privileged admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
