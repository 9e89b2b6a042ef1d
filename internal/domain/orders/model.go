// Package orders tracks device purchase orders. Every status change appends
// a row to the order's history, and the two writes commit together, so the
// history is a complete account of how an order moved.
package orders

import "time"

// Order lifecycle. Delivered and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusInProgress = "in_progress"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusInProgress, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func terminalStatus(s string) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order maps to the orders table in the orders database. client_id points
// into the clients database; client_name is snapshotted at creation so
// listings never need a cross-database join.
type Order struct {
	ID          int64      `db:"id" json:"id"`
	OrderNo     string     `db:"order_no" json:"order_no"`
	ClientID    int64      `db:"client_id" json:"client_id"`
	ClientName  string     `db:"client_name" json:"client_name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Quantity    int        `db:"quantity" json:"quantity"`
	Status      string     `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy   int64      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// StatusChange is one row of an order's append-only history.
type StatusChange struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Status    string    `db:"status" json:"status"`
	ChangedBy int64     `db:"changed_by" json:"changed_by"`
	Note      *string   `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateOrderRequest struct {
	ClientID    int64   `json:"client_id"`
	ClientName  string  `json:"client_name"`
	Description *string `json:"description"`
	Quantity    int     `json:"quantity"`
	Notes       *string `json:"notes"`
}

// UpdateOrderRequest carries a partial update. Status is not here; it only
// moves through the status endpoint so the history stays complete.
type UpdateOrderRequest struct {
	Description *string `json:"description"`
	Quantity    *int    `json:"quantity"`
	Notes       *string `json:"notes"`
}

type StatusUpdateRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

// ListFilter narrows the order listing. Search matches the order number.
type ListFilter struct {
	Status   string
	ClientID int64
	Search   string
	Limit    int
	Offset   int
}
