package gateways

import "context"

type Repository interface {
	Create(ctx context.Context, g *Gateway) error
	GetByID(ctx context.Context, id int64) (*Gateway, error)
	// GetBySerial returns nil, nil when no gateway holds the serial number.
	GetBySerial(ctx context.Context, serialNo string) (*Gateway, error)
	Update(ctx context.Context, g *Gateway) error
	// List returns one page of gateways plus the total row count for the
	// same filter.
	List(ctx context.Context, f ListFilter) ([]*Gateway, int, error)
	// MarkSeen stamps last_seen and sets the status in one statement.
	MarkSeen(ctx context.Context, id int64, status string) error

	InsertHeartbeat(ctx context.Context, hb *Heartbeat) error
	// ListHeartbeats returns one page of a gateway's heartbeats, newest
	// first, plus the gateway's total heartbeat count.
	ListHeartbeats(ctx context.Context, gatewayID int64, limit, offset int) ([]*Heartbeat, int, error)
}
