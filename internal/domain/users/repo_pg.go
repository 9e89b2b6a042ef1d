package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/southerniot/dashboard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type userRepoPG struct{}

func NewRepoPG() Repository {
	return &userRepoPG{}
}

func (r *userRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainUsers)
	}
	return nil, db.ErrNoSession
}

const userCols = `id, email, username, hashed_password, full_name, role,
	is_active, created_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.HashedPassword, &u.FullName,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.LastLogin)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO users (email, username, hashed_password, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		u.Email, u.Username, u.HashedPassword, u.FullName, u.Role, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(conn.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(conn.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
}

func (r *userRepoPG) FindConflict(ctx context.Context, email, username string) (*User, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(conn.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1 OR username = $2 LIMIT 1`,
		email, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE users SET email=$2, full_name=$3, role=$4, is_active=$5, hashed_password=$6
		WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Role, u.IsActive, u.HashedPassword)
	return err
}

func (r *userRepoPG) Deactivate(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	return err
}

func (r *userRepoPG) List(ctx context.Context, f ListFilter) ([]*User, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Role != "" {
		where += fmt.Sprintf(` AND role = $%d`, idx)
		args = append(args, f.Role)
		idx++
	}
	if f.IsActive != nil {
		where += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *f.IsActive)
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userCols + ` FROM users` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) SetLastLogin(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}
