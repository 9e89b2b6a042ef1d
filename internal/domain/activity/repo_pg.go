package activity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/southerniot/dashboard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type activityRepoPG struct{}

func NewRepoPG() Repository {
	return &activityRepoPG{}
}

func (r *activityRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainHistoUsers)
	}
	return nil, db.ErrNoSession
}

const entryCols = `id, user_id, action, entity_type, entity_id, details,
	ip_address, user_agent, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
		&e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
	return &e, err
}

func (r *activityRepoPG) Insert(ctx context.Context, e *Entry) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		e.UserID, e.Action, e.EntityType, e.EntityID, e.Details, e.IPAddress, e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *activityRepoPG) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `
		SELECT `+entryCols+` FROM activity_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
