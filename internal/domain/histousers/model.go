package histousers

import "time"

// Lab roles. Admins run the lab and verify work; doctors (pathologists)
// write and sign reports. There is no third role.
const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
)

// User maps to the users table in the histo_users database.
type User struct {
	ID                 int64      `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	Username           string     `db:"username" json:"username"`
	HashedPassword     string     `db:"hashed_password" json:"-"`
	FullName           *string    `db:"full_name" json:"full_name,omitempty"`
	Role               string     `db:"role" json:"role"`
	Qualification      *string    `db:"qualification" json:"qualification,omitempty"`
	RegistrationNumber *string    `db:"registration_number" json:"registration_number,omitempty"`
	Department         *string    `db:"department" json:"department,omitempty"`
	SignatureImageURL  *string    `db:"signature_image_url" json:"signature_image_url,omitempty"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	IsSuperuser        bool       `db:"is_superuser" json:"is_superuser"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
}

// DisplayName returns the full name when set, falling back to the username.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
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
	Email              string  `json:"email"`
	Username           string  `json:"username"`
	Password           string  `json:"password"`
	FullName           *string `json:"full_name"`
	Role               string  `json:"role"`
	Qualification      *string `json:"qualification"`
	RegistrationNumber *string `json:"registration_number"`
	Department         *string `json:"department"`
}

// UpdateUserRequest carries a partial update; nil fields are left unchanged.
type UpdateUserRequest struct {
	Email              *string `json:"email"`
	FullName           *string `json:"full_name"`
	Password           *string `json:"password"`
	Role               *string `json:"role"`
	Qualification      *string `json:"qualification"`
	RegistrationNumber *string `json:"registration_number"`
	Department         *string `json:"department"`
	SignatureImageURL  *string `json:"signature_image_url"`
	IsActive           *bool   `json:"is_active"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ListFilter narrows the user listing.
type ListFilter struct {
	Role     string
	IsActive *bool
	Limit    int
	Offset   int
}
