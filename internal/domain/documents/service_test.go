package documents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/southerniot/dashboard/internal/domain/histousers"
	"github.com/southerniot/dashboard/internal/domain/patients"
	"github.com/southerniot/dashboard/internal/domain/reports"
	"github.com/southerniot/dashboard/internal/platform/render"
)

func ptrStr(s string) *string        { return &s }
func ptrI64(i int64) *int64          { return &i }
func ptrTime(t time.Time) *time.Time { return &t }

type fakeReports struct {
	byID map[int64]*reports.Report
}

func (f *fakeReports) Get(_ context.Context, id int64) (*reports.Report, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, reports.ErrNotFound
	}
	return r, nil
}

type fakePatients struct {
	byInvoice map[string]*patients.Patient
}

func (f *fakePatients) GetByInvoice(_ context.Context, invoiceNo string) (*patients.Patient, error) {
	p, ok := f.byInvoice[invoiceNo]
	if !ok {
		return nil, patients.ErrNotFound
	}
	return p, nil
}

type fakeDoctors struct {
	byID map[int64]*histousers.User
}

func (f *fakeDoctors) Get(_ context.Context, id int64) (*histousers.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("no rows in result set")
	}
	return u, nil
}

// captureRenderer records the document it was asked to render.
type captureRenderer struct {
	docs []*render.ReportDocument
	pdf  []byte
	err  error
}

func (c *captureRenderer) RenderPDF(_ context.Context, doc *render.ReportDocument) ([]byte, error) {
	c.docs = append(c.docs, doc)
	if c.err != nil {
		return nil, c.err
	}
	return c.pdf, nil
}

func (c *captureRenderer) last() *render.ReportDocument {
	return c.docs[len(c.docs)-1]
}

// fixture wires a signed report, its patient, the authoring doctor (id 3)
// and the signing doctor (id 9) into a documents service.
type fixture struct {
	svc      *Service
	reports  *fakeReports
	patients *fakePatients
	renderer *captureRenderer
}

func newFixture() *fixture {
	signedAt := time.Date(2026, time.March, 4, 16, 30, 0, 0, time.UTC)

	rep := &reports.Report{
		ID:         1,
		PatientID:  7,
		InvoiceNo:  "INV-2026-0007",
		ReportType: reports.TypeHistopathology,
		Specimen:   ptrStr("gastric biopsy"),
		Diagnosis:  ptrStr("chronic gastritis, H. pylori associated"),
		Comments:   ptrStr("correlate clinically"),
		Status:     reports.StatusSigned,
		CreatedBy:  3,
		CreatedAt:  time.Date(2026, time.February, 20, 9, 0, 0, 0, time.UTC),
		SignedBy:   ptrI64(9),
		SignedAt:   ptrTime(signedAt),
	}

	patient := &patients.Patient{
		ID:                7,
		InvoiceNo:         "INV-2026-0007",
		ReceiveDate:       patients.NewDate(2026, time.February, 18),
		PatientName:       "Farhana Akter",
		Age:               52,
		AgeUnit:           "years",
		Sex:               "F",
		ConsultantName:    ptrStr("Dr. Kamal Uddin"),
		InvestigationType: patients.InvestigationHistopathology,
	}

	author := &histousers.User{
		ID:       3,
		Username: "mhasan",
		FullName: ptrStr("Dr. Mahmud Hasan"),
		Role:     histousers.RoleDoctor,
	}
	signer := &histousers.User{
		ID:                 9,
		Username:           "arahman",
		FullName:           ptrStr("Dr. Afsana Rahman"),
		Role:               histousers.RoleDoctor,
		Qualification:      ptrStr("MBBS, M.Phil (Pathology)"),
		RegistrationNumber: ptrStr("BMDC-44321"),
		SignatureImageURL:  ptrStr("https://cdn.lab.internal/sig/arahman.png"),
	}

	f := &fixture{
		reports:  &fakeReports{byID: map[int64]*reports.Report{rep.ID: rep}},
		patients: &fakePatients{byInvoice: map[string]*patients.Patient{patient.InvoiceNo: patient}},
		renderer: &captureRenderer{pdf: []byte("%PDF-1.7 rendered")},
	}
	doctors := &fakeDoctors{byID: map[int64]*histousers.User{author.ID: author, signer.ID: signer}}
	f.svc = NewService(f.reports, f.patients, doctors, f.renderer)
	return f
}

var codePattern = regexp.MustCompile(`^[0-9A-F]{16}$`)

func TestFinalPDF_AssemblesDocument(t *testing.T) {
	f := newFixture()

	pdf, filename, err := f.svc.FinalPDF(context.Background(), 1)
	if err != nil {
		t.Fatalf("FinalPDF: %v", err)
	}
	if string(pdf) != "%PDF-1.7 rendered" {
		t.Errorf("pdf = %q", pdf)
	}
	if filename != "Report_INV-2026-0007.pdf" {
		t.Errorf("filename = %q", filename)
	}

	doc := f.renderer.last()
	if doc.Preview {
		t.Error("final document must not be a preview")
	}
	if doc.Patient.Name != "Farhana Akter" || doc.Patient.InvoiceNo != "INV-2026-0007" {
		t.Errorf("patient block = %+v", doc.Patient)
	}
	if doc.Patient.ReceiveDate != "2026-02-18" {
		t.Errorf("receive_date = %q", doc.Patient.ReceiveDate)
	}
	if doc.Patient.ConsultantName != "Dr. Kamal Uddin" {
		t.Errorf("consultant_name = %q", doc.Patient.ConsultantName)
	}
	if doc.Report.Diagnosis != "chronic gastritis, H. pylori associated" {
		t.Errorf("diagnosis = %q", doc.Report.Diagnosis)
	}
	if doc.Report.Status != reports.StatusSigned {
		t.Errorf("status = %q", doc.Report.Status)
	}

	// The signature block names the signer, not the author.
	if doc.Doctor == nil {
		t.Fatal("doctor block missing")
	}
	if doc.Doctor.Name != "Dr. Afsana Rahman" {
		t.Errorf("doctor name = %q", doc.Doctor.Name)
	}
	if doc.Doctor.Designation != "MBBS, M.Phil (Pathology)" || doc.Doctor.Registration != "BMDC-44321" {
		t.Errorf("doctor block = %+v", doc.Doctor)
	}
	if doc.Doctor.SignatureImageURL != "https://cdn.lab.internal/sig/arahman.png" {
		t.Errorf("signature url = %q", doc.Doctor.SignatureImageURL)
	}

	if !codePattern.MatchString(doc.VerificationCode) {
		t.Errorf("verification code = %q, want 16 uppercase hex chars", doc.VerificationCode)
	}
}

func TestFinalPDF_VerificationCodeDiffersPerRender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.svc.FinalPDF(ctx, 1)
	f.svc.FinalPDF(ctx, 1)

	if len(f.renderer.docs) != 2 {
		t.Fatalf("renders = %d, want 2", len(f.renderer.docs))
	}
	a, b := f.renderer.docs[0].VerificationCode, f.renderer.docs[1].VerificationCode
	if a == b {
		t.Errorf("verification codes identical across renders: %q", a)
	}
}

func TestFinalPDF_ReportingDateFallsBackToPublished(t *testing.T) {
	f := newFixture()
	rep := f.reports.byID[1]
	rep.Status = reports.StatusPublished
	rep.PublishedAt = ptrTime(time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC))

	if _, _, err := f.svc.FinalPDF(context.Background(), 1); err != nil {
		t.Fatalf("FinalPDF: %v", err)
	}
	if got := f.renderer.last().Patient.ReportingDate; got != "2026-03-05" {
		t.Errorf("reporting_date = %q, want the published date", got)
	}
}

func TestFinalPDF_RefusedBeforeSigning(t *testing.T) {
	f := newFixture()

	for _, status := range []string{reports.StatusDraft, reports.StatusPendingVerification, reports.StatusVerified} {
		f.reports.byID[1].Status = status
		_, _, err := f.svc.FinalPDF(context.Background(), 1)
		if !errors.Is(err, ErrNotFinal) {
			t.Errorf("status %s: err = %v, want ErrNotFinal", status, err)
		}
	}
	if len(f.renderer.docs) != 0 {
		t.Errorf("renderer called for a non-final report")
	}
}

func TestFinalPDF_UnknownReport(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.FinalPDF(context.Background(), 404)
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
}

func TestFinalPDF_DanglingInvoiceReference(t *testing.T) {
	f := newFixture()
	// The soft reference is not enforced across databases: the patient row
	// can be deleted while the report still names its invoice.
	delete(f.patients.byInvoice, "INV-2026-0007")

	_, _, err := f.svc.FinalPDF(context.Background(), 1)
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}
}

func TestFinalPDF_RendererErrorPropagates(t *testing.T) {
	f := newFixture()
	f.renderer.err = render.ErrUnavailable

	_, _, err := f.svc.FinalPDF(context.Background(), 1)
	if !errors.Is(err, render.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestPreview_AnyStatusWithoutSignature(t *testing.T) {
	f := newFixture()
	f.reports.byID[1].Status = reports.StatusDraft

	pdf, err := f.svc.Preview(context.Background(), 1)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("empty preview")
	}

	doc := f.renderer.last()
	if !doc.Preview {
		t.Error("preview flag not set")
	}
	if doc.VerificationCode != "" {
		t.Errorf("preview must carry no verification code, got %q", doc.VerificationCode)
	}
	// Previews attribute the author and never include a signature image.
	if doc.Doctor == nil || doc.Doctor.Name != "Dr. Mahmud Hasan" {
		t.Errorf("doctor block = %+v, want the authoring doctor", doc.Doctor)
	}
	if doc.Doctor.SignatureImageURL != "" {
		t.Errorf("preview leaked a signature image: %q", doc.Doctor.SignatureImageURL)
	}
}

func TestPreview_MissingDoctorTolerated(t *testing.T) {
	f := newFixture()
	f.reports.byID[1].CreatedBy = 77 // no such user

	if _, err := f.svc.Preview(context.Background(), 1); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if f.renderer.last().Doctor != nil {
		t.Errorf("doctor block = %+v, want nil", f.renderer.last().Doctor)
	}
}
