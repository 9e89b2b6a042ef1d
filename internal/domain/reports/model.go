package reports

import "time"

// Report workflow statuses. A report moves draft → pending_verification →
// verified → signed → published; reject sends it back to draft, and amending
// a published report starts a fresh draft row.
const (
	StatusDraft               = "draft"
	StatusPendingVerification = "pending_verification"
	StatusVerified            = "verified"
	StatusSigned              = "signed"
	StatusPublished           = "published"
)

const (
	TypeHistopathology = "Histopathology"
	TypeCytopathology  = "Cytopathology"
)

// Report maps to the reports table in the histo_reports database. patient_id
// and invoice_no are soft references into the histo_patients database; the
// invoice_no is what cross-database lookups key on.
type Report struct {
	ID                     int64      `db:"id" json:"id"`
	PatientID              int64      `db:"patient_id" json:"patient_id"`
	InvoiceNo              string     `db:"invoice_no" json:"invoice_no"`
	ReportType             string     `db:"report_type" json:"report_type"`
	Specimen               *string    `db:"specimen" json:"specimen,omitempty"`
	GrossExamination       *string    `db:"gross_examination" json:"gross_examination,omitempty"`
	MicroscopicExamination *string    `db:"microscopic_examination" json:"microscopic_examination,omitempty"`
	Diagnosis              *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	ICDCode                *string    `db:"icd_code" json:"icd_code,omitempty"`
	SpecialStains          *string    `db:"special_stains" json:"special_stains,omitempty"`
	Immunohistochemistry   *string    `db:"immunohistochemistry" json:"immunohistochemistry,omitempty"`
	Comments               *string    `db:"comments" json:"comments,omitempty"`
	AIAssisted             bool       `db:"ai_assisted" json:"ai_assisted"`
	Status                 string     `db:"status" json:"status"`
	CreatedBy              int64      `db:"created_by" json:"created_by"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	VerifiedBy             *int64     `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt             *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	SignedBy               *int64     `db:"signed_by" json:"signed_by,omitempty"`
	SignedAt               *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	PublishedAt            *time.Time `db:"published_at" json:"published_at,omitempty"`
	IsAmended              bool       `db:"is_amended" json:"is_amended"`
	AmendmentReason        *string    `db:"amendment_reason" json:"amendment_reason,omitempty"`
	OriginalReportID       *int64     `db:"original_report_id" json:"original_report_id,omitempty"`
}

// Version is an immutable snapshot of a report's content taken before each
// workflow transition. version_number runs 1..N per report with no gaps.
type Version struct {
	ID            int64                  `db:"id" json:"id"`
	ReportID      int64                  `db:"report_id" json:"report_id"`
	VersionNumber int                    `db:"version_number" json:"version_number"`
	Content       map[string]interface{} `db:"content" json:"content"`
	ChangedBy     int64                  `db:"changed_by" json:"changed_by"`
	ChangeReason  *string                `db:"change_reason" json:"change_reason,omitempty"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

type CreateRequest struct {
	PatientID              int64   `json:"patient_id"`
	InvoiceNo              string  `json:"invoice_no"`
	ReportType             string  `json:"report_type"`
	Specimen               *string `json:"specimen"`
	GrossExamination       *string `json:"gross_examination"`
	MicroscopicExamination *string `json:"microscopic_examination"`
	Diagnosis              *string `json:"diagnosis"`
	ICDCode                *string `json:"icd_code"`
	SpecialStains          *string `json:"special_stains"`
	Immunohistochemistry   *string `json:"immunohistochemistry"`
	Comments               *string `json:"comments"`
}

type UpdateRequest struct {
	ReportType             *string `json:"report_type"`
	Specimen               *string `json:"specimen"`
	GrossExamination       *string `json:"gross_examination"`
	MicroscopicExamination *string `json:"microscopic_examination"`
	Diagnosis              *string `json:"diagnosis"`
	ICDCode                *string `json:"icd_code"`
	SpecialStains          *string `json:"special_stains"`
	Immunohistochemistry   *string `json:"immunohistochemistry"`
	Comments               *string `json:"comments"`
	AIAssisted             *bool   `json:"ai_assisted"`
}

type SubmitRequest struct {
	Notes *string `json:"notes"`
}

type VerifyRequest struct {
	Notes *string `json:"notes"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type SignRequest struct {
	SignaturePassword string `json:"signature_password"`
}

type AmendRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows the report listing. InvoiceNo matches as a substring;
// Status and ReportType match exactly.
type ListFilter struct {
	Status     string
	ReportType string
	InvoiceNo  string
	Limit      int
	Offset     int
}
