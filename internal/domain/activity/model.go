package activity

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Actions recorded by the lab module. Kept as constants so call sites and
// queries cannot drift apart.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"

	ActionCreatePatient = "create_patient"
	ActionVerifyPatient = "verify_patient"
	ActionRejectPatient = "reject_patient"

	ActionCreateReport  = "create_report"
	ActionSubmitReport  = "submit_report"
	ActionVerifyReport  = "verify_report"
	ActionRejectReport  = "reject_report"
	ActionSignReport    = "sign_report"
	ActionPublishReport = "publish_report"
	ActionAmendReport   = "amend_report"
)

// Entry maps to the activity_logs table. Rows are append-only; there is no
// update or delete path.
type Entry struct {
	ID         int64                  `db:"id" json:"id"`
	UserID     int64                  `db:"user_id" json:"user_id"`
	Action     string                 `db:"action" json:"action"`
	EntityType *string                `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   *int64                 `db:"entity_id" json:"entity_id,omitempty"`
	Details    map[string]interface{} `db:"details" json:"details,omitempty"`
	IPAddress  *string                `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string                `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
}

// FromEcho starts an entry pre-filled with the request's client address and
// user agent. Callers set entity and detail fields before recording.
func FromEcho(c echo.Context, userID int64, action string) Entry {
	e := Entry{UserID: userID, Action: action}
	if ip := c.RealIP(); ip != "" {
		e.IPAddress = &ip
	}
	if ua := c.Request().UserAgent(); ua != "" {
		e.UserAgent = &ua
	}
	return e
}

// Entity attaches the acted-on entity to the entry.
func (e Entry) Entity(entityType string, id int64) Entry {
	e.EntityType = &entityType
	e.EntityID = &id
	return e
}

// With attaches one detail key to the entry.
func (e Entry) With(key string, value interface{}) Entry {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}
