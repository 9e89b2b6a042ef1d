// Package gateways manages the LoRa/cellular gateways that bridge end
// devices to the backend. Gateways post heartbeats with the shared device
// access token; a heartbeat marks its gateway online and stamps last_seen.
package gateways

import (
	"encoding/json"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusRetired = "retired"
)

func validStatus(s string) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusRetired:
		return true
	}
	return false
}

// Gateway maps to the gateways table in the gateways database.
type Gateway struct {
	ID              int64      `db:"id" json:"id"`
	SerialNo        string     `db:"serial_no" json:"serial_no"`
	Name            string     `db:"name" json:"name"`
	Location        *string    `db:"location" json:"location,omitempty"`
	FirmwareVersion *string    `db:"firmware_version" json:"firmware_version,omitempty"`
	Status          string     `db:"status" json:"status"`
	LastSeen        *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Heartbeat is one keep-alive sample. The payload carries whatever the
// gateway reports about itself (uptime, signal, connected device counts).
type Heartbeat struct {
	ID         int64           `db:"id" json:"id"`
	GatewayID  int64           `db:"gateway_id" json:"gateway_id"`
	RecordedAt time.Time       `db:"recorded_at" json:"recorded_at"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
}

type CreateGatewayRequest struct {
	SerialNo        string  `json:"serial_no"`
	Name            string  `json:"name"`
	Location        *string `json:"location"`
	FirmwareVersion *string `json:"firmware_version"`
}

// UpdateGatewayRequest carries a partial update; nil fields are left
// unchanged.
type UpdateGatewayRequest struct {
	Name            *string `json:"name"`
	Location        *string `json:"location"`
	FirmwareVersion *string `json:"firmware_version"`
	Status          *string `json:"status"`
}

// HeartbeatRequest is what hardware posts. recorded_at defaults to the
// server clock.
type HeartbeatRequest struct {
	SerialNo   string          `json:"serial_no"`
	RecordedAt *time.Time      `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ListFilter narrows the gateway listing. Search matches serial number and
// name.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}
