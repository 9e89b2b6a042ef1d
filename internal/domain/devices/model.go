// Package devices manages the fleet of end devices and the telemetry they
// post. Hardware authenticates with the shared device access token and
// identifies itself by serial number, never by row id.
package devices

import (
	"encoding/json"
	"time"
)

// Device lifecycle. A provisioned device has been registered but has not
// reported yet; its first reading moves it to active. Retired devices are
// kept for the readings they accumulated.
const (
	StatusProvisioned = "provisioned"
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusRetired     = "retired"
)

func validStatus(s string) bool {
	switch s {
	case StatusProvisioned, StatusActive, StatusInactive, StatusRetired:
		return true
	}
	return false
}

// Device maps to the devices table in the devices database. client_id points
// into the clients database and gateway_serial into the gateways database;
// both are lookups only.
type Device struct {
	ID              int64      `db:"id" json:"id"`
	SerialNo        string     `db:"serial_no" json:"serial_no"`
	Name            string     `db:"name" json:"name"`
	Model           *string    `db:"model" json:"model,omitempty"`
	FirmwareVersion *string    `db:"firmware_version" json:"firmware_version,omitempty"`
	ClientID        *int64     `db:"client_id" json:"client_id,omitempty"`
	GatewaySerial   *string    `db:"gateway_serial" json:"gateway_serial,omitempty"`
	Status          string     `db:"status" json:"status"`
	LastSeen        *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Reading is one telemetry sample. The payload is stored as the device sent
// it; the dashboard renders it without interpreting the fields.
type Reading struct {
	ID         int64           `db:"id" json:"id"`
	DeviceID   int64           `db:"device_id" json:"device_id"`
	RecordedAt time.Time       `db:"recorded_at" json:"recorded_at"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
}

type CreateDeviceRequest struct {
	SerialNo        string  `json:"serial_no"`
	Name            string  `json:"name"`
	Model           *string `json:"model"`
	FirmwareVersion *string `json:"firmware_version"`
	ClientID        *int64  `json:"client_id"`
	GatewaySerial   *string `json:"gateway_serial"`
}

// UpdateDeviceRequest carries a partial update; nil fields are left unchanged.
type UpdateDeviceRequest struct {
	Name            *string `json:"name"`
	Model           *string `json:"model"`
	FirmwareVersion *string `json:"firmware_version"`
	ClientID        *int64  `json:"client_id"`
	GatewaySerial   *string `json:"gateway_serial"`
	Status          *string `json:"status"`
}

// IngestRequest is what hardware posts. recorded_at defaults to the server
// clock when the device does not keep time.
type IngestRequest struct {
	SerialNo   string          `json:"serial_no"`
	RecordedAt *time.Time      `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ListFilter narrows the device listing. Search matches serial number and
// name.
type ListFilter struct {
	Status        string
	ClientID      int64
	GatewaySerial string
	Search        string
	Limit         int
	Offset        int
}
