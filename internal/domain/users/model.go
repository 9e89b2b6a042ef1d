// Package users manages the device-management side's staff accounts. The lab
// module keeps its own user table (histousers); the two populations never mix.
package users

import "time"

// ERP roles. Admins manage accounts and approve orders; staff run day-to-day
// operations.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User maps to the users table in the users database.
type User struct {
	ID             int64      `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	Username       string     `db:"username" json:"username"`
	HashedPassword string     `db:"hashed_password" json:"-"`
	FullName       *string    `db:"full_name" json:"full_name,omitempty"`
	Role           string     `db:"role" json:"role"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreateUserRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
}

// UpdateUserRequest carries a partial update; nil fields are left unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// ListFilter narrows the account listing.
type ListFilter struct {
	Role     string
	IsActive *bool
	Limit    int
	Offset   int
}
