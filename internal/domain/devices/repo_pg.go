package devices

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

type deviceRepoPG struct{}

func NewRepoPG() Repository {
	return &deviceRepoPG{}
}

func (r *deviceRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainDevices)
	}
	return nil, db.ErrNoSession
}

const deviceCols = `id, serial_no, name, model, firmware_version, client_id,
	gateway_serial, status, last_seen, created_at, updated_at`

func scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.SerialNo, &d.Name, &d.Model, &d.FirmwareVersion,
		&d.ClientID, &d.GatewaySerial, &d.Status, &d.LastSeen, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *deviceRepoPG) Create(ctx context.Context, d *Device) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO devices (serial_no, name, model, firmware_version, client_id, gateway_serial, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		d.SerialNo, d.Name, d.Model, d.FirmwareVersion, d.ClientID, d.GatewaySerial, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *deviceRepoPG) GetByID(ctx context.Context, id int64) (*Device, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanDevice(conn.QueryRow(ctx, `SELECT `+deviceCols+` FROM devices WHERE id = $1`, id))
}

func (r *deviceRepoPG) GetBySerial(ctx context.Context, serialNo string) (*Device, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	d, err := scanDevice(conn.QueryRow(ctx, `SELECT `+deviceCols+` FROM devices WHERE serial_no = $1`, serialNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *deviceRepoPG) Update(ctx context.Context, d *Device) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE devices SET name=$2, model=$3, firmware_version=$4, client_id=$5,
			gateway_serial=$6, status=$7, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Model, d.FirmwareVersion, d.ClientID, d.GatewaySerial, d.Status)
	return err
}

func (r *deviceRepoPG) List(ctx context.Context, f ListFilter) ([]*Device, int, error) {
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
	if f.GatewaySerial != "" {
		where += fmt.Sprintf(` AND gateway_serial = $%d`, idx)
		args = append(args, f.GatewaySerial)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (serial_no ILIKE $%d OR name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM devices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + deviceCols + ` FROM devices` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *deviceRepoPG) MarkSeen(ctx context.Context, id int64, status string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE devices SET last_seen = NOW(), status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *deviceRepoPG) InsertReading(ctx context.Context, rd *Reading) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO device_readings (device_id, recorded_at, payload)
		VALUES ($1, $2, $3)
		RETURNING id`,
		rd.DeviceID, rd.RecordedAt, rd.Payload,
	).Scan(&rd.ID)
}

func (r *deviceRepoPG) ListReadings(ctx context.Context, deviceID int64, limit, offset int) ([]*Reading, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM device_readings WHERE device_id = $1`, deviceID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, device_id, recorded_at, payload
		FROM device_readings
		WHERE device_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3`, deviceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Reading
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.ID, &rd.DeviceID, &rd.RecordedAt, &rd.Payload); err != nil {
			return nil, 0, err
		}
		items = append(items, &rd)
	}
	return items, total, rows.Err()
}
