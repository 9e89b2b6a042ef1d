package users

import "context"

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// FindConflict returns the existing user holding the given email or
	// username, or nil when both are free.
	FindConflict(ctx context.Context, email, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	Deactivate(ctx context.Context, id int64) error
	// List returns one page of accounts plus the total row count for the
	// same filter, so handlers can build pagination envelopes.
	List(ctx context.Context, f ListFilter) ([]*User, int, error)
	SetLastLogin(ctx context.Context, id int64) error
}
