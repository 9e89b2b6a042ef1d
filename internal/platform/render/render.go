// Package render talks to the document rendering service that turns a
// finalized report into a PDF. The dashboard never builds PDFs itself; it
// assembles the document payload from the patient, report, and signing
// doctor records and ships it to the renderer.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable is returned when no renderer endpoint is configured.
var ErrUnavailable = errors.New("render service is not configured")

// PatientDetails carries the patient block of the rendered report.
type PatientDetails struct {
	Name                  string `json:"name"`
	Age                   int    `json:"age"`
	AgeUnit               string `json:"age_unit,omitempty"`
	Sex                   string `json:"sex,omitempty"`
	InvoiceNo             string `json:"invoice_no"`
	ReceiveDate           string `json:"receive_date,omitempty"`
	ReportingDate         string `json:"reporting_date,omitempty"`
	ConsultantName        string `json:"consultant_name,omitempty"`
	ConsultantDesignation string `json:"consultant_designation,omitempty"`
	InvestigationType     string `json:"investigation_type,omitempty"`
	ClinicalInformation   string `json:"clinical_information,omitempty"`
}

// ReportDetails carries the clinical content block.
type ReportDetails struct {
	ReportType             string `json:"report_type"`
	Specimen               string `json:"specimen,omitempty"`
	GrossExamination       string `json:"gross_examination,omitempty"`
	MicroscopicExamination string `json:"microscopic_examination,omitempty"`
	Diagnosis              string `json:"diagnosis,omitempty"`
	SpecialStains          string `json:"special_stains,omitempty"`
	Immunohistochemistry   string `json:"immunohistochemistry,omitempty"`
	Comments               string `json:"comments,omitempty"`
	ICDCode                string `json:"icd_code,omitempty"`
	Status                 string `json:"status"`
	CreatedAt              string `json:"created_at,omitempty"`
	SignedAt               string `json:"signed_at,omitempty"`
	PublishedAt            string `json:"published_at,omitempty"`
}

// DoctorDetails identifies the pathologist shown in the signature block. For
// previews of unsigned reports the block is rendered without a signature.
type DoctorDetails struct {
	Name              string `json:"name"`
	Designation       string `json:"designation,omitempty"`
	Registration      string `json:"registration,omitempty"`
	SignatureImageURL string `json:"signature_image_url,omitempty"`
}

// ReportDocument is the full payload posted to the renderer. Doctor is nil
// when the report has no attributable pathologist yet.
type ReportDocument struct {
	Patient          PatientDetails `json:"patient"`
	Report           ReportDetails  `json:"report"`
	Doctor           *DoctorDetails `json:"doctor,omitempty"`
	VerificationCode string         `json:"verification_code,omitempty"`
	Preview          bool           `json:"preview"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the render client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a renderer client. An empty baseURL produces a client
// whose calls fail with ErrUnavailable, which the handlers map to 503.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a renderer endpoint is configured.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// RenderPDF posts the document to the renderer and returns the PDF bytes.
func (c *Client) RenderPDF(ctx context.Context, doc *ReportDocument) ([]byte, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal render payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render/report", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call render service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("render service returned status %d", resp.StatusCode)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered document: %w", err)
	}
	return pdf, nil
}
