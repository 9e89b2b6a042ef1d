package clients

import "context"

type Repository interface {
	Create(ctx context.Context, cl *Client) error
	GetByID(ctx context.Context, id int64) (*Client, error)
	Update(ctx context.Context, cl *Client) error
	Deactivate(ctx context.Context, id int64) error
	// List returns one page of clients plus the total row count for the
	// same filter.
	List(ctx context.Context, f ListFilter) ([]*Client, int, error)
}
