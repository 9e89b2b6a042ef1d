// Package clients manages the companies that buy devices and connectivity.
// Orders and devices reference clients by id across database boundaries;
// those references are lookups only, so client rows are never hard-deleted.
package clients

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Client maps to the clients table in the clients database.
type Client struct {
	ID          int64      `db:"id" json:"id"`
	CompanyName string     `db:"company_name" json:"company_name"`
	ContactName *string    `db:"contact_name" json:"contact_name,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	Status      string     `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type CreateClientRequest struct {
	CompanyName string  `json:"company_name"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	Notes       *string `json:"notes"`
}

// UpdateClientRequest carries a partial update; nil fields are left unchanged.
type UpdateClientRequest struct {
	CompanyName *string `json:"company_name"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

// ListFilter narrows the client listing. Search matches company name,
// contact name and email, case-insensitively.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}
