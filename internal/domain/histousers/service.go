package histousers

import (
	"context"
	"errors"
	"fmt"

	"github.com/southerniot/dashboard/internal/platform/auth"
)

// Sentinel errors the handlers map to specific HTTP responses. Authenticate
// deliberately returns the same ErrBadCredentials for an unknown username and
// a wrong password so the API never confirms which usernames exist.
var (
	ErrNotFound           = errors.New("user not found")
	ErrBadCredentials     = errors.New("incorrect username or password")
	ErrInactive           = errors.New("user account is inactive")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Authenticate checks a username/password pair and stamps last_login on
// success. Inactive accounts authenticate but are rejected, which tells the
// owner their account is disabled rather than pretending it does not exist.
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

// RegisterFirstAdmin creates the initial admin account. It only works while
// the user table is empty; after that, accounts come from an admin.
func (s *Service) RegisterFirstAdmin(ctx context.Context, req CreateUserRequest) (*User, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return nil, ErrRegistrationClosed
	}

	req.Role = RoleAdmin
	return s.createUser(ctx, req)
}

// Create adds a lab user. Role defaults to doctor.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Role == "" {
		req.Role = RoleDoctor
	}
	if req.Role != RoleAdmin && req.Role != RoleDoctor {
		return nil, fmt.Errorf("invalid role: %s", req.Role)
	}
	return s.createUser(ctx, req)
}

func (s *Service) createUser(ctx context.Context, req CreateUserRequest) (*User, error) {
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
		Email:              req.Email,
		Username:           req.Username,
		HashedPassword:     hashed,
		FullName:           req.FullName,
		Role:               req.Role,
		Qualification:      req.Qualification,
		RegistrationNumber: req.RegistrationNumber,
		Department:         req.Department,
		IsActive:           true,
		IsSuperuser:        req.Role == RoleAdmin,
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

func (s *Service) List(ctx context.Context, f ListFilter) ([]*User, error) {
	return s.users.List(ctx, f)
}

// Update applies a partial update. is_superuser follows the role whenever
// the role changes.
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
		if *req.Role != RoleAdmin && *req.Role != RoleDoctor {
			return nil, fmt.Errorf("invalid role: %s", *req.Role)
		}
		u.Role = *req.Role
		u.IsSuperuser = u.Role == RoleAdmin
	}
	if req.Qualification != nil {
		u.Qualification = req.Qualification
	}
	if req.RegistrationNumber != nil {
		u.RegistrationNumber = req.RegistrationNumber
	}
	if req.Department != nil {
		u.Department = req.Department
	}
	if req.SignatureImageURL != nil {
		u.SignatureImageURL = req.SignatureImageURL
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

// Deactivate soft-deletes a user. The row stays so created_by/verified_by
// references in the report databases keep resolving.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.users.Deactivate(ctx, id)
}

// ChangePassword verifies the current password before setting the new one,
// for admins included.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, newPassword string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if !auth.VerifyPassword(u.HashedPassword, current) {
		return ErrWrongPassword
	}
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}
	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, id, hashed)
}
