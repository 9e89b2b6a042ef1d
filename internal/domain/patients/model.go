package patients

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

const (
	InvestigationHistopathology = "Histopathology"
	InvestigationCytopathology  = "Cytopathology"
)

// Date is a calendar date with no time component. It marshals as YYYY-MM-DD,
// which is what the registration form submits and the date columns store.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		// Tolerate a full timestamp; only the date part is kept.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
		}
	}
	d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return nil
}

// Scan implements sql.Scanner so pgx can read date columns into Date.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v
		return nil
	case string:
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return err
		}
		d.Time = t
		return nil
	case nil:
		d.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

// Value implements driver.Valuer for query parameters.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Patient maps to the patients table in the histo_patients database. The
// invoice_no is the business key that the report and document modules use to
// reach back into this database.
type Patient struct {
	ID                    int64      `db:"id" json:"id"`
	InvoiceNo             string     `db:"invoice_no" json:"invoice_no"`
	ReceiveDate           Date       `db:"receive_date" json:"receive_date"`
	ReportingDate         *Date      `db:"reporting_date" json:"reporting_date,omitempty"`
	PatientName           string     `db:"patient_name" json:"patient_name"`
	Age                   int        `db:"age" json:"age"`
	AgeUnit               string     `db:"age_unit" json:"age_unit"`
	Sex                   string     `db:"sex" json:"sex"`
	ConsultantName        *string    `db:"consultant_name" json:"consultant_name,omitempty"`
	ConsultantDesignation *string    `db:"consultant_designation" json:"consultant_designation,omitempty"`
	InvestigationType     string     `db:"investigation_type" json:"investigation_type"`
	ClinicalInformation   *string    `db:"clinical_information" json:"clinical_information,omitempty"`
	Phone                 *string    `db:"phone" json:"phone,omitempty"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	Address               *string    `db:"address" json:"address,omitempty"`
	VerificationStatus    string     `db:"verification_status" json:"verification_status"`
	VerifiedBy            *int64     `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt            *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerificationNotes     *string    `db:"verification_notes" json:"verification_notes,omitempty"`
	CreatedBy             int64      `db:"created_by" json:"created_by"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// ReferringDoctor maps to the referring_doctors table: the consultants the
// registration form offers for quick selection.
type ReferringDoctor struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Designation *string   `db:"designation" json:"designation,omitempty"`
	Hospital    *string   `db:"hospital" json:"hospital,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UpdatePatientRequest carries a partial update; nil fields stay unchanged.
type UpdatePatientRequest struct {
	ReceiveDate           *Date   `json:"receive_date"`
	ReportingDate         *Date   `json:"reporting_date"`
	PatientName           *string `json:"patient_name"`
	Age                   *int    `json:"age"`
	AgeUnit               *string `json:"age_unit"`
	Sex                   *string `json:"sex"`
	ConsultantName        *string `json:"consultant_name"`
	ConsultantDesignation *string `json:"consultant_designation"`
	InvestigationType     *string `json:"investigation_type"`
	ClinicalInformation   *string `json:"clinical_information"`
	Phone                 *string `json:"phone"`
	Email                 *string `json:"email"`
	Address               *string `json:"address"`
}

type UpdateDoctorRequest struct {
	Name        *string `json:"name"`
	Designation *string `json:"designation"`
	Hospital    *string `json:"hospital"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	IsActive    *bool   `json:"is_active"`
}

// VerifyRequest carries the optional notes an admin attaches when verifying.
type VerifyRequest struct {
	Notes *string `json:"notes"`
}

// RejectRequest carries the mandatory notes explaining a rejection.
type RejectRequest struct {
	Notes string `json:"notes"`
}

// ListFilter narrows the patient listing.
type ListFilter struct {
	VerificationStatus string
	InvestigationType  string
	Search             string
	Limit              int
	Offset             int
}
