package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/southerniot/dashboard/internal/platform/auth"
)

// Authenticate returns the same ErrBadCredentials for an unknown username and
// a wrong password so the API never confirms which usernames exist.
var (
	ErrNotFound       = errors.New("user not found")
	ErrBadCredentials = errors.New("incorrect username or password")
	ErrInactive       = errors.New("user account is inactive")
	ErrEmailTaken     = errors.New("email already registered")
	ErrUsernameTaken  = errors.New("username already taken")
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Authenticate checks a username/password pair and stamps last_login on
// success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if !auth.VerifyPassword(u.HashedPassword, password) {
		return nil, ErrBadCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	if err := s.users.SetLastLogin(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	return u, nil
}

// Create adds a staff account. Role defaults to staff.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Role == "" {
		req.Role = RoleStaff
	}
	if req.Role != RoleAdmin && req.Role != RoleStaff {
		return nil, fmt.Errorf("invalid role: %s", req.Role)
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("email, username and password are required")
	}

	existing, err := s.users.FindConflict(ctx, req.Email, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Email == req.Email {
			return nil, ErrEmailTaken
		}
		return nil, ErrUsernameTaken
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: hashed,
		FullName:       req.FullName,
		Role:           req.Role,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*User, int, error) {
	return s.users.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if req.Email != nil && *req.Email != u.Email {
		existing, err := s.users.FindConflict(ctx, *req.Email, "")
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, ErrEmailTaken
		}
		u.Email = *req.Email
	}
	if req.FullName != nil {
		u.FullName = req.FullName
	}
	if req.Role != nil {
		if *req.Role != RoleAdmin && *req.Role != RoleStaff {
			return nil, fmt.Errorf("invalid role: %s", *req.Role)
		}
		u.Role = *req.Role
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		u.HashedPassword = hashed
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Deactivate soft-deletes an account. The row stays so created_by references
// in the orders database keep resolving.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.users.Deactivate(ctx, id)
}
