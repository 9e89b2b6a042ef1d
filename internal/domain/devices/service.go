package devices

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("device not found")
	ErrSerialTaken = errors.New("serial number already registered")
	ErrRetired     = errors.New("device is retired")
)

type Metrics interface {
	DeviceReadingIngested()
}

type nopMetrics struct{}

func (nopMetrics) DeviceReadingIngested() {}

type Service struct {
	devices Repository
	metrics Metrics
}

func NewService(devices Repository) *Service {
	return &Service{devices: devices, metrics: nopMetrics{}}
}

func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Create registers a device in status provisioned. The serial number is the
// identity hardware presents at ingest, so it must be unique.
func (s *Service) Create(ctx context.Context, req CreateDeviceRequest) (*Device, error) {
	if req.SerialNo == "" {
		return nil, fmt.Errorf("serial_no is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	existing, err := s.devices.GetBySerial(ctx, req.SerialNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSerialTaken
	}

	d := &Device{
		SerialNo:        req.SerialNo,
		Name:            req.Name,
		Model:           req.Model,
		FirmwareVersion: req.FirmwareVersion,
		ClientID:        req.ClientID,
		GatewaySerial:   req.GatewaySerial,
		Status:          StatusProvisioned,
	}
	if err := s.devices.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Device, error) {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Device, int, error) {
	return s.devices.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateDeviceRequest) (*Device, error) {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		d.Name = *req.Name
	}
	if req.Model != nil {
		d.Model = req.Model
	}
	if req.FirmwareVersion != nil {
		d.FirmwareVersion = req.FirmwareVersion
	}
	if req.ClientID != nil {
		d.ClientID = req.ClientID
	}
	if req.GatewaySerial != nil {
		d.GatewaySerial = req.GatewaySerial
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			return nil, fmt.Errorf("invalid status: %s", *req.Status)
		}
		d.Status = *req.Status
	}

	if err := s.devices.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Retire takes a device out of service. The row and its readings stay.
func (s *Service) Retire(ctx context.Context, id int64) error {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	d.Status = StatusRetired
	return s.devices.Update(ctx, d)
}

// Ingest stores a telemetry reading posted by hardware. The device is looked
// up by serial number; its first reading moves it from provisioned to active,
// and every reading stamps last_seen. Retired devices are refused.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Reading, error) {
	if req.SerialNo == "" {
		return nil, fmt.Errorf("serial_no is required")
	}
	if len(req.Payload) == 0 {
		return nil, fmt.Errorf("payload is required")
	}

	d, err := s.devices.GetBySerial(ctx, req.SerialNo)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	if d.Status == StatusRetired {
		return nil, ErrRetired
	}

	recordedAt := time.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	rd := &Reading{
		DeviceID:   d.ID,
		RecordedAt: recordedAt,
		Payload:    req.Payload,
	}
	if err := s.devices.InsertReading(ctx, rd); err != nil {
		return nil, err
	}

	status := d.Status
	if status == StatusProvisioned {
		status = StatusActive
	}
	if err := s.devices.MarkSeen(ctx, d.ID, status); err != nil {
		return nil, err
	}

	s.metrics.DeviceReadingIngested()
	return rd, nil
}

// Readings returns one page of a device's telemetry, newest first.
func (s *Service) Readings(ctx context.Context, id int64, limit, offset int) ([]*Reading, int, error) {
	if _, err := s.devices.GetByID(ctx, id); err != nil {
		return nil, 0, ErrNotFound
	}
	return s.devices.ListReadings(ctx, id, limit, offset)
}
