package histousers

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
		return s.Conn(ctx, db.DomainHistoUsers)
	}
	return nil, db.ErrNoSession
}

const userCols = `id, email, username, hashed_password, full_name, role,
	qualification, registration_number, department, signature_image_url,
	is_active, is_superuser, created_at, updated_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.HashedPassword, &u.FullName,
		&u.Role, &u.Qualification, &u.RegistrationNumber, &u.Department,
		&u.SignatureImageURL, &u.IsActive, &u.IsSuperuser, &u.CreatedAt,
		&u.UpdatedAt, &u.LastLogin)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO users (email, username, hashed_password, full_name, role,
			qualification, registration_number, department, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		u.Email, u.Username, u.HashedPassword, u.FullName, u.Role,
		u.Qualification, u.RegistrationNumber, u.Department, u.IsActive, u.IsSuperuser,
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
		UPDATE users SET email=$2, full_name=$3, role=$4, qualification=$5,
			registration_number=$6, department=$7, signature_image_url=$8,
			is_active=$9, is_superuser=$10, hashed_password=$11, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Role, u.Qualification,
		u.RegistrationNumber, u.Department, u.SignatureImageURL,
		u.IsActive, u.IsSuperuser, u.HashedPassword)
	return err
}

func (r *userRepoPG) Deactivate(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *userRepoPG) List(ctx context.Context, f ListFilter) ([]*User, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + userCols + ` FROM users WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Role != "" {
		query += fmt.Sprintf(` AND role = $%d`, idx)
		args = append(args, f.Role)
		idx++
	}
	if f.IsActive != nil {
		query += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *f.IsActive)
		idx++
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *userRepoPG) Count(ctx context.Context) (int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	var total int
	err = conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	return total, err
}

func (r *userRepoPG) SetLastLogin(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

func (r *userRepoPG) SetPassword(ctx context.Context, id int64, hashed string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`, id, hashed)
	return err
}
