// Package documents assembles printable report documents. A report lives in
// histo_reports, its patient in histo_patients, and the signing doctor in
// histo_users; this is the one place that walks the invoice_no soft reference
// across all three databases and ships the combined payload to the renderer.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/southerniot/dashboard/internal/domain/histousers"
	"github.com/southerniot/dashboard/internal/domain/patients"
	"github.com/southerniot/dashboard/internal/domain/reports"
	"github.com/southerniot/dashboard/internal/platform/render"
)

var (
	ErrReportNotFound  = errors.New("report not found")
	ErrPatientNotFound = errors.New("patient not found")

	// ErrNotFinal refuses the downloadable document while the report is
	// still moving through the workflow. Previews have no such guard.
	ErrNotFinal = errors.New("report is not signed or published")
)

// ReportSource is the slice of the reports service this package reads.
type ReportSource interface {
	Get(ctx context.Context, id int64) (*reports.Report, error)
}

// PatientSource resolves the invoice_no soft reference. The patient row can
// be gone even though the report names its invoice; callers get
// ErrPatientNotFound rather than a partial document.
type PatientSource interface {
	GetByInvoice(ctx context.Context, invoiceNo string) (*patients.Patient, error)
}

// DoctorSource resolves the signing or authoring pathologist.
type DoctorSource interface {
	Get(ctx context.Context, id int64) (*histousers.User, error)
}

// Renderer is the subset of the render client used here.
type Renderer interface {
	RenderPDF(ctx context.Context, doc *render.ReportDocument) ([]byte, error)
}

type Service struct {
	reports  ReportSource
	patients PatientSource
	doctors  DoctorSource
	renderer Renderer
}

func NewService(reports ReportSource, patients PatientSource, doctors DoctorSource, renderer Renderer) *Service {
	return &Service{reports: reports, patients: patients, doctors: doctors, renderer: renderer}
}

// verificationCode derives the code printed next to the document's QR block.
// The uuid salt makes every rendered copy carry a distinct code.
func verificationCode(reportID int64, invoiceNo string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%s-%s", reportID, invoiceNo, uuid.New())))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// FinalPDF renders the downloadable document for a signed or published
// report. Returns the PDF bytes and the download filename.
func (s *Service) FinalPDF(ctx context.Context, reportID int64) ([]byte, string, error) {
	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, "", ErrReportNotFound
	}
	if rep.Status != reports.StatusSigned && rep.Status != reports.StatusPublished {
		return nil, "", ErrNotFinal
	}

	p, err := s.patients.GetByInvoice(ctx, rep.InvoiceNo)
	if err != nil {
		return nil, "", ErrPatientNotFound
	}

	var doctor *histousers.User
	if rep.SignedBy != nil {
		doctor, _ = s.doctors.Get(ctx, *rep.SignedBy)
	}

	doc := buildDocument(p, rep, doctor, false)
	doc.VerificationCode = verificationCode(rep.ID, rep.InvoiceNo)

	pdf, err := s.renderer.RenderPDF(ctx, doc)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("Report_%s.pdf", rep.InvoiceNo), nil
}

// Preview renders a watermarked working copy in any status. The signature
// block stays empty and no verification code is issued; the attributed
// doctor is the report's author rather than a signer.
func (s *Service) Preview(ctx context.Context, reportID int64) ([]byte, error) {
	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, ErrReportNotFound
	}

	p, err := s.patients.GetByInvoice(ctx, rep.InvoiceNo)
	if err != nil {
		return nil, ErrPatientNotFound
	}

	doctor, _ := s.doctors.Get(ctx, rep.CreatedBy)

	return s.renderer.RenderPDF(ctx, buildDocument(p, rep, doctor, true))
}

func buildDocument(p *patients.Patient, rep *reports.Report, doctor *histousers.User, preview bool) *render.ReportDocument {
	reportingDate := dateString(p.ReportingDate)
	if reportingDate == "" && !preview && rep.PublishedAt != nil {
		// The lab often publishes before the reporting date is filled in;
		// the published timestamp stands in on the final document.
		reportingDate = rep.PublishedAt.Format("2006-01-02")
	}

	doc := &render.ReportDocument{
		Patient: render.PatientDetails{
			Name:                  p.PatientName,
			Age:                   p.Age,
			AgeUnit:               p.AgeUnit,
			Sex:                   p.Sex,
			InvoiceNo:             p.InvoiceNo,
			ReceiveDate:           dateString(&p.ReceiveDate),
			ReportingDate:         reportingDate,
			ConsultantName:        orEmpty(p.ConsultantName),
			ConsultantDesignation: orEmpty(p.ConsultantDesignation),
			InvestigationType:     p.InvestigationType,
			ClinicalInformation:   orEmpty(p.ClinicalInformation),
		},
		Report: render.ReportDetails{
			ReportType:             rep.ReportType,
			Specimen:               orEmpty(rep.Specimen),
			GrossExamination:       orEmpty(rep.GrossExamination),
			MicroscopicExamination: orEmpty(rep.MicroscopicExamination),
			Diagnosis:              orEmpty(rep.Diagnosis),
			SpecialStains:          orEmpty(rep.SpecialStains),
			Immunohistochemistry:   orEmpty(rep.Immunohistochemistry),
			Comments:               orEmpty(rep.Comments),
			ICDCode:                orEmpty(rep.ICDCode),
			Status:                 rep.Status,
		},
		Preview: preview,
	}
	if !rep.CreatedAt.IsZero() {
		doc.Report.CreatedAt = rep.CreatedAt.Format(time.RFC3339)
	}
	if rep.SignedAt != nil {
		doc.Report.SignedAt = rep.SignedAt.Format(time.RFC3339)
	}
	if rep.PublishedAt != nil {
		doc.Report.PublishedAt = rep.PublishedAt.Format(time.RFC3339)
	}

	if doctor != nil {
		d := &render.DoctorDetails{
			Name:         doctor.DisplayName(),
			Designation:  orEmpty(doctor.Qualification),
			Registration: orEmpty(doctor.RegistrationNumber),
		}
		if !preview {
			d.SignatureImageURL = orEmpty(doctor.SignatureImageURL)
		}
		doc.Doctor = d
	}

	return doc
}

func dateString(d *patients.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
