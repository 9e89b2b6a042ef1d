package activity

import "context"

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error)
}
