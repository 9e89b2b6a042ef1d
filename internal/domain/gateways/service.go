package gateways

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("gateway not found")
	ErrSerialTaken = errors.New("serial number already registered")
	ErrRetired     = errors.New("gateway is retired")
)

type Metrics interface {
	GatewayHeartbeatReceived()
}

type nopMetrics struct{}

func (nopMetrics) GatewayHeartbeatReceived() {}

type Service struct {
	gateways Repository
	metrics  Metrics
}

func NewService(gateways Repository) *Service {
	return &Service{gateways: gateways, metrics: nopMetrics{}}
}

func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Create registers a gateway in status offline; it goes online with its
// first heartbeat.
func (s *Service) Create(ctx context.Context, req CreateGatewayRequest) (*Gateway, error) {
	if req.SerialNo == "" {
		return nil, fmt.Errorf("serial_no is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	existing, err := s.gateways.GetBySerial(ctx, req.SerialNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSerialTaken
	}

	g := &Gateway{
		SerialNo:        req.SerialNo,
		Name:            req.Name,
		Location:        req.Location,
		FirmwareVersion: req.FirmwareVersion,
		Status:          StatusOffline,
	}
	if err := s.gateways.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Gateway, error) {
	g, err := s.gateways.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Gateway, int, error) {
	return s.gateways.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateGatewayRequest) (*Gateway, error) {
	g, err := s.gateways.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		g.Name = *req.Name
	}
	if req.Location != nil {
		g.Location = req.Location
	}
	if req.FirmwareVersion != nil {
		g.FirmwareVersion = req.FirmwareVersion
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			return nil, fmt.Errorf("invalid status: %s", *req.Status)
		}
		g.Status = *req.Status
	}

	if err := s.gateways.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Retire takes a gateway out of service. The row and its heartbeat history
// stay.
func (s *Service) Retire(ctx context.Context, id int64) error {
	g, err := s.gateways.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	g.Status = StatusRetired
	return s.gateways.Update(ctx, g)
}

// Heartbeat stores a keep-alive posted by hardware. The gateway is looked up
// by serial number, marked online and stamped last_seen. Retired gateways
// are refused.
func (s *Service) Heartbeat(ctx context.Context, req HeartbeatRequest) (*Heartbeat, error) {
	if req.SerialNo == "" {
		return nil, fmt.Errorf("serial_no is required")
	}

	g, err := s.gateways.GetBySerial(ctx, req.SerialNo)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	if g.Status == StatusRetired {
		return nil, ErrRetired
	}

	recordedAt := time.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}
	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	hb := &Heartbeat{
		GatewayID:  g.ID,
		RecordedAt: recordedAt,
		Payload:    payload,
	}
	if err := s.gateways.InsertHeartbeat(ctx, hb); err != nil {
		return nil, err
	}
	if err := s.gateways.MarkSeen(ctx, g.ID, StatusOnline); err != nil {
		return nil, err
	}

	s.metrics.GatewayHeartbeatReceived()
	return hb, nil
}

// Heartbeats returns one page of a gateway's keep-alives, newest first.
func (s *Service) Heartbeats(ctx context.Context, id int64, limit, offset int) ([]*Heartbeat, int, error) {
	if _, err := s.gateways.GetByID(ctx, id); err != nil {
		return nil, 0, ErrNotFound
	}
	return s.gateways.ListHeartbeats(ctx, id, limit, offset)
}
