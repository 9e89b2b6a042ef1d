package orders

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

// orderRepoPG runs against the request's session connection, or against a
// pinned transaction when created through Transact.
type orderRepoPG struct {
	tx pgx.Tx
}

func NewRepoPG() Repository {
	return &orderRepoPG{}
}

func (r *orderRepoPG) conn(ctx context.Context) (queryable, error) {
	if r.tx != nil {
		return r.tx, nil
	}
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainOrders)
	}
	return nil, db.ErrNoSession
}

func (r *orderRepoPG) Transact(ctx context.Context, fn func(Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	s := db.SessionsFromContext(ctx)
	if s == nil {
		return db.ErrNoSession
	}
	conn, err := s.Conn(ctx, db.DomainOrders)
	if err != nil {
		return err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&orderRepoPG{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const orderCols = `id, order_no, client_id, client_name, description, quantity,
	status, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNo, &o.ClientID, &o.ClientName, &o.Description,
		&o.Quantity, &o.Status, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO orders (order_no, client_id, client_name, description, quantity, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		o.OrderNo, o.ClientID, o.ClientName, o.Description, o.Quantity, o.Status, o.Notes, o.CreatedBy,
	).Scan(&o.ID, &o.CreatedAt)
}

func (r *orderRepoPG) GetByID(ctx context.Context, id int64) (*Order, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanOrder(conn.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (r *orderRepoPG) Update(ctx context.Context, o *Order) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE orders SET description=$2, quantity=$3, status=$4, notes=$5, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Description, o.Quantity, o.Status, o.Notes)
	return err
}

func (r *orderRepoPG) Delete(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (r *orderRepoPG) List(ctx context.Context, f ListFilter) ([]*Order, int, error) {
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
	if f.ClientID != 0 {
		where += fmt.Sprintf(` AND client_id = $%d`, idx)
		args = append(args, f.ClientID)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND order_no ILIKE $%d`, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderCols + ` FROM orders` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *orderRepoPG) LastOrderNoForYear(ctx context.Context, pattern string) (string, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return "", err
	}
	var orderNo string
	err = conn.QueryRow(ctx, `
		SELECT order_no FROM orders
		WHERE order_no LIKE $1
		ORDER BY id DESC
		LIMIT 1`, pattern).Scan(&orderNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return orderNo, err
}

func (r *orderRepoPG) AppendStatusChange(ctx context.Context, sc *StatusChange) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO order_status_history (order_id, status, changed_by, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		sc.OrderID, sc.Status, sc.ChangedBy, sc.Note,
	).Scan(&sc.ID, &sc.CreatedAt)
}

func (r *orderRepoPG) ListStatusChanges(ctx context.Context, orderID int64) ([]*StatusChange, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, order_id, status, changed_by, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.OrderID, &sc.Status, &sc.ChangedBy, &sc.Note, &sc.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &sc)
	}
	return items, rows.Err()
}
