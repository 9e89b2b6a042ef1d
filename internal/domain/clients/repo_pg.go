package clients

import (
	"context"
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

type clientRepoPG struct{}

func NewRepoPG() Repository {
	return &clientRepoPG{}
}

func (r *clientRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainClients)
	}
	return nil, db.ErrNoSession
}

const clientCols = `id, company_name, contact_name, email, phone, address,
	status, notes, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var cl Client
	err := row.Scan(&cl.ID, &cl.CompanyName, &cl.ContactName, &cl.Email, &cl.Phone,
		&cl.Address, &cl.Status, &cl.Notes, &cl.CreatedAt, &cl.UpdatedAt)
	return &cl, err
}

func (r *clientRepoPG) Create(ctx context.Context, cl *Client) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO clients (company_name, contact_name, email, phone, address, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		cl.CompanyName, cl.ContactName, cl.Email, cl.Phone, cl.Address, cl.Status, cl.Notes,
	).Scan(&cl.ID, &cl.CreatedAt)
}

func (r *clientRepoPG) GetByID(ctx context.Context, id int64) (*Client, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanClient(conn.QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
}

func (r *clientRepoPG) Update(ctx context.Context, cl *Client) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE clients SET company_name=$2, contact_name=$3, email=$4, phone=$5,
			address=$6, status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1`,
		cl.ID, cl.CompanyName, cl.ContactName, cl.Email, cl.Phone,
		cl.Address, cl.Status, cl.Notes)
	return err
}

func (r *clientRepoPG) Deactivate(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE clients SET status = 'inactive', updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *clientRepoPG) List(ctx context.Context, f ListFilter) ([]*Client, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (company_name ILIKE $%d OR contact_name ILIKE $%d OR email ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + clientCols + ` FROM clients` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Client
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cl)
	}
	return items, total, rows.Err()
}
