package devices

import "context"

type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id int64) (*Device, error)
	// GetBySerial returns nil, nil when no device holds the serial number.
	GetBySerial(ctx context.Context, serialNo string) (*Device, error)
	Update(ctx context.Context, d *Device) error
	// List returns one page of devices plus the total row count for the
	// same filter.
	List(ctx context.Context, f ListFilter) ([]*Device, int, error)
	// MarkSeen stamps last_seen and sets the status in one statement.
	MarkSeen(ctx context.Context, id int64, status string) error

	InsertReading(ctx context.Context, r *Reading) error
	// ListReadings returns one page of a device's readings, newest first,
	// plus the device's total reading count.
	ListReadings(ctx context.Context, deviceID int64, limit, offset int) ([]*Reading, int, error)
}
