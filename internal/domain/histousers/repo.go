package histousers

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
	List(ctx context.Context, f ListFilter) ([]*User, error)
	Count(ctx context.Context) (int, error)
	SetLastLogin(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, hashed string) error
}
