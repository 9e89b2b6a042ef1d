package histousers

import (
	"context"
	"fmt"
	"testing"

	"github.com/southerniot/dashboard/internal/platform/auth"
)

// -- Mock Repository --

type mockUserRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*User), nextID: 1}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("no rows in result set")
	}
	return u, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no rows in result set")
}

func (m *mockUserRepo) FindConflict(_ context.Context, email, username string) (*User, error) {
	for _, u := range m.users {
		if (email != "" && u.Email == email) || (username != "" && u.Username == username) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return fmt.Errorf("no rows in result set")
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) Deactivate(_ context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("no rows in result set")
	}
	u.IsActive = false
	return nil
}

func (m *mockUserRepo) List(_ context.Context, f ListFilter) ([]*User, error) {
	var out []*User
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepo) Count(_ context.Context) (int, error) {
	return len(m.users), nil
}

func (m *mockUserRepo) SetLastLogin(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("no rows in result set")
	}
	return nil
}

func (m *mockUserRepo) SetPassword(_ context.Context, id int64, hashed string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("no rows in result set")
	}
	u.HashedPassword = hashed
	return nil
}

func seedUser(t *testing.T, repo *mockUserRepo, username, password, role string, active bool) *User {
	t.Helper()
	hashed, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &User{
		Email:          username + "@lab.example",
		Username:       username,
		HashedPassword: hashed,
		Role:           role,
		IsActive:       active,
		IsSuperuser:    role == RoleAdmin,
	}
	repo.Create(context.Background(), u)
	return u
}

// -- Authenticate --

func TestAuthenticate_Success(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "drosei", "s3cret", RoleDoctor, true)
	svc := NewService(repo)

	u, err := svc.Authenticate(context.Background(), "drosei", "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "drosei" {
		t.Errorf("username = %q", u.Username)
	}
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc := NewService(newMockUserRepo())
	if _, err := svc.Authenticate(context.Background(), "ghost", "pw"); err != ErrBadCredentials {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "drosei", "s3cret", RoleDoctor, true)
	svc := NewService(repo)

	if _, err := svc.Authenticate(context.Background(), "drosei", "wrong"); err != ErrBadCredentials {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
}

func TestAuthenticate_InactiveAccount(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "drosei", "s3cret", RoleDoctor, false)
	svc := NewService(repo)

	if _, err := svc.Authenticate(context.Background(), "drosei", "s3cret"); err != ErrInactive {
		t.Errorf("expected ErrInactive, got %v", err)
	}
}

// -- Registration --

func TestRegisterFirstAdmin_EmptyTable(t *testing.T) {
	svc := NewService(newMockUserRepo())

	u, err := svc.RegisterFirstAdmin(context.Background(), CreateUserRequest{
		Email:    "admin@lab.example",
		Username: "admin",
		Password: "changeme",
		Role:     RoleDoctor, // requested role is ignored; first user is admin
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}
	if !u.IsSuperuser {
		t.Error("expected is_superuser for first admin")
	}
	if !u.IsActive {
		t.Error("expected first admin active")
	}
}

func TestRegisterFirstAdmin_ClosedOnceUsersExist(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "admin", "pw", RoleAdmin, true)
	svc := NewService(repo)

	_, err := svc.RegisterFirstAdmin(context.Background(), CreateUserRequest{
		Email: "second@lab.example", Username: "second", Password: "pw",
	})
	if err != ErrRegistrationClosed {
		t.Errorf("expected ErrRegistrationClosed, got %v", err)
	}
}

// -- Create / Update --

func TestCreate_DefaultsToDoctor(t *testing.T) {
	svc := NewService(newMockUserRepo())
	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "d@lab.example", Username: "d", Password: "pw",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != RoleDoctor {
		t.Errorf("role = %q, want doctor", u.Role)
	}
	if u.IsSuperuser {
		t.Error("doctor must not be superuser")
	}
	if u.HashedPassword == "pw" {
		t.Error("password stored unhashed")
	}
}

func TestCreate_EmailTaken(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "drosei", "pw", RoleDoctor, true)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "drosei@lab.example", Username: "other", Password: "pw",
	})
	if err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreate_UsernameTaken(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "drosei", "pw", RoleDoctor, true)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "new@lab.example", Username: "drosei", Password: "pw",
	})
	if err != ErrUsernameTaken {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestCreate_InvalidRole(t *testing.T) {
	svc := NewService(newMockUserRepo())
	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "x@lab.example", Username: "x", Password: "pw", Role: "superadmin",
	})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestUpdate_RoleChangeSyncsSuperuser(t *testing.T) {
	repo := newMockUserRepo()
	u := seedUser(t, repo, "drosei", "pw", RoleDoctor, true)
	svc := NewService(repo)

	admin := RoleAdmin
	updated, err := svc.Update(context.Background(), u.ID, UpdateUserRequest{Role: &admin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.IsSuperuser {
		t.Error("expected superuser after promotion to admin")
	}

	doctor := RoleDoctor
	updated, err = svc.Update(context.Background(), u.ID, UpdateUserRequest{Role: &doctor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.IsSuperuser {
		t.Error("expected superuser cleared after demotion")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := NewService(newMockUserRepo())
	name := "X"
	if _, err := svc.Update(context.Background(), 99, UpdateUserRequest{FullName: &name}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivate_SoftDelete(t *testing.T) {
	repo := newMockUserRepo()
	u := seedUser(t, repo, "drosei", "pw", RoleDoctor, true)
	svc := NewService(repo)

	if err := svc.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("row must survive a soft delete: %v", err)
	}
	if got.IsActive {
		t.Error("expected is_active=false after delete")
	}
}

// -- ChangePassword --

func TestChangePassword_Success(t *testing.T) {
	repo := newMockUserRepo()
	u := seedUser(t, repo, "drosei", "old-pw", RoleDoctor, true)
	svc := NewService(repo)

	if err := svc.ChangePassword(context.Background(), u.ID, "old-pw", "new-pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "drosei", "new-pw"); err != nil {
		t.Errorf("new password should authenticate: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "drosei", "old-pw"); err == nil {
		t.Error("old password should no longer authenticate")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	repo := newMockUserRepo()
	u := seedUser(t, repo, "drosei", "old-pw", RoleDoctor, true)
	svc := NewService(repo)

	if err := svc.ChangePassword(context.Background(), u.ID, "nope", "new-pw"); err != ErrWrongPassword {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
}
