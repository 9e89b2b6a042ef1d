package orders

import "context"

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id int64) error
	// List returns one page of orders plus the total row count for the
	// same filter.
	List(ctx context.Context, f ListFilter) ([]*Order, int, error)
	// LastOrderNoForYear returns the most recently assigned order number
	// matching the LIKE pattern, or "" when the year has none yet.
	LastOrderNoForYear(ctx context.Context, pattern string) (string, error)

	AppendStatusChange(ctx context.Context, sc *StatusChange) error
	ListStatusChanges(ctx context.Context, orderID int64) ([]*StatusChange, error)

	// Transact runs fn against a repository bound to a single transaction.
	// The order mutation and its history row commit or roll back together.
	Transact(ctx context.Context, fn func(Repository) error) error
}
