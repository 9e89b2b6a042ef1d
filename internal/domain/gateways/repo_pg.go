package gateways

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

type gatewayRepoPG struct{}

func NewRepoPG() Repository {
	return &gatewayRepoPG{}
}

func (r *gatewayRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainGateways)
	}
	return nil, db.ErrNoSession
}

const gatewayCols = `id, serial_no, name, location, firmware_version, status,
	last_seen, created_at, updated_at`

func scanGateway(row pgx.Row) (*Gateway, error) {
	var g Gateway
	err := row.Scan(&g.ID, &g.SerialNo, &g.Name, &g.Location, &g.FirmwareVersion,
		&g.Status, &g.LastSeen, &g.CreatedAt, &g.UpdatedAt)
	return &g, err
}

func (r *gatewayRepoPG) Create(ctx context.Context, g *Gateway) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO gateways (serial_no, name, location, firmware_version, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		g.SerialNo, g.Name, g.Location, g.FirmwareVersion, g.Status,
	).Scan(&g.ID, &g.CreatedAt)
}

func (r *gatewayRepoPG) GetByID(ctx context.Context, id int64) (*Gateway, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanGateway(conn.QueryRow(ctx, `SELECT `+gatewayCols+` FROM gateways WHERE id = $1`, id))
}

func (r *gatewayRepoPG) GetBySerial(ctx context.Context, serialNo string) (*Gateway, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	g, err := scanGateway(conn.QueryRow(ctx, `SELECT `+gatewayCols+` FROM gateways WHERE serial_no = $1`, serialNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *gatewayRepoPG) Update(ctx context.Context, g *Gateway) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE gateways SET name=$2, location=$3, firmware_version=$4, status=$5, updated_at=NOW()
		WHERE id = $1`,
		g.ID, g.Name, g.Location, g.FirmwareVersion, g.Status)
	return err
}

func (r *gatewayRepoPG) List(ctx context.Context, f ListFilter) ([]*Gateway, int, error) {
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
		where += fmt.Sprintf(` AND (serial_no ILIKE $%d OR name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM gateways`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + gatewayCols + ` FROM gateways` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *gatewayRepoPG) MarkSeen(ctx context.Context, id int64, status string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE gateways SET last_seen = NOW(), status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *gatewayRepoPG) InsertHeartbeat(ctx context.Context, hb *Heartbeat) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO gateway_heartbeats (gateway_id, recorded_at, payload)
		VALUES ($1, $2, $3)
		RETURNING id`,
		hb.GatewayID, hb.RecordedAt, hb.Payload,
	).Scan(&hb.ID)
}

func (r *gatewayRepoPG) ListHeartbeats(ctx context.Context, gatewayID int64, limit, offset int) ([]*Heartbeat, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM gateway_heartbeats WHERE gateway_id = $1`, gatewayID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, gateway_id, recorded_at, payload
		FROM gateway_heartbeats
		WHERE gateway_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3`, gatewayID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Heartbeat
	for rows.Next() {
		var hb Heartbeat
		if err := rows.Scan(&hb.ID, &hb.GatewayID, &hb.RecordedAt, &hb.Payload); err != nil {
			return nil, 0, err
		}
		items = append(items, &hb)
	}
	return items, total, rows.Err()
}
