package domain

import "time"

// UserRole controls which staff routes a dashboard user may call.
type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRoleManager UserRole = "manager"
	UserRoleAdmin   UserRole = "admin"
)

// Valid reports whether r is a known user role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleManager, UserRoleAdmin:
		return true
	}
	return false
}

// User is a dashboard account that authenticates against the API.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token represents issued access token metadata.
type Token struct {
	ID        string
	UserID    string
	Role      UserRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// PasswordResetToken is a single-use credential for resetting a password.
type PasswordResetToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}
