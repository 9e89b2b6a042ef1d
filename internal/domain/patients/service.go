package patients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("patient not found")
	ErrAlreadyVerified = errors.New("patient is already verified")
	ErrDoctorNotFound  = errors.New("referring doctor not found")
)

// Metrics is the subset of counters this service feeds. The zero value of
// Service uses a no-op implementation so tests do not need a collector.
type Metrics interface {
	PatientRegistered()
	InvoiceAllocated()
}

type nopMetrics struct{}

func (nopMetrics) PatientRegistered() {}
func (nopMetrics) InvoiceAllocated()  {}

type Service struct {
	patients Repository
	doctors  DoctorRepository
	metrics  Metrics
}

func NewService(patients Repository, doctors DoctorRepository) *Service {
	return &Service{patients: patients, doctors: doctors, metrics: nopMetrics{}}
}

func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// nextInvoiceNo allocates the next invoice number for the current year,
// formatted INV-{year}-NNNN. Numbering restarts at 0001 each January.
//
// TODO: two concurrent registrations can read the same last invoice and
// allocate duplicate numbers; replace the scan with a per-year sequence.
func (s *Service) nextInvoiceNo(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", time.Now().Year())

	last, err := s.patients.LastInvoiceForYear(ctx, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("look up last invoice: %w", err)
	}

	next := 1
	if last != "" {
		if n, err := strconv.Atoi(last[strings.LastIndex(last, "-")+1:]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

// Register stores a new patient with a freshly allocated invoice number and
// verification_status pending. The caller-supplied invoice_no, if any, is
// ignored.
func (s *Service) Register(ctx context.Context, p *Patient, createdBy int64) (*Patient, error) {
	if p.PatientName == "" {
		return nil, fmt.Errorf("patient_name is required")
	}
	if p.Sex == "" {
		return nil, fmt.Errorf("sex is required")
	}
	if p.ReceiveDate.IsZero() {
		return nil, fmt.Errorf("receive_date is required")
	}
	if p.AgeUnit == "" {
		p.AgeUnit = "years"
	}
	if p.InvestigationType == "" {
		p.InvestigationType = InvestigationHistopathology
	}

	invoiceNo, err := s.nextInvoiceNo(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.InvoiceAllocated()

	p.InvoiceNo = invoiceNo
	p.VerificationStatus = VerificationPending
	p.VerifiedBy = nil
	p.VerifiedAt = nil
	p.VerificationNotes = nil
	p.CreatedBy = createdBy

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.PatientRegistered()
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) GetByInvoice(ctx context.Context, invoiceNo string) (*Patient, error) {
	p, err := s.patients.GetByInvoice(ctx, invoiceNo)
	if err != nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Patient, error) {
	return s.patients.List(ctx, f)
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Patient, error) {
	return s.patients.ListPending(ctx, limit, offset)
}

// Update applies a partial update to the demographic fields. Verification
// state is only touched through Verify and Reject.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePatientRequest) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if req.ReceiveDate != nil {
		p.ReceiveDate = *req.ReceiveDate
	}
	if req.ReportingDate != nil {
		p.ReportingDate = req.ReportingDate
	}
	if req.PatientName != nil {
		p.PatientName = *req.PatientName
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.AgeUnit != nil {
		p.AgeUnit = *req.AgeUnit
	}
	if req.Sex != nil {
		p.Sex = *req.Sex
	}
	if req.ConsultantName != nil {
		p.ConsultantName = req.ConsultantName
	}
	if req.ConsultantDesignation != nil {
		p.ConsultantDesignation = req.ConsultantDesignation
	}
	if req.InvestigationType != nil {
		p.InvestigationType = *req.InvestigationType
	}
	if req.ClinicalInformation != nil {
		p.ClinicalInformation = req.ClinicalInformation
	}
	if req.Phone != nil {
		p.Phone = req.Phone
	}
	if req.Email != nil {
		p.Email = req.Email
	}
	if req.Address != nil {
		p.Address = req.Address
	}

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the patient row. Reports referencing the invoice_no keep
// their copy of the key; the soft reference simply stops resolving.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.patients.Delete(ctx, id)
}

// Verify marks a pending or rejected patient as verified. Verifying twice
// fails so a second admin cannot silently overwrite who verified.
func (s *Service) Verify(ctx context.Context, id, verifiedBy int64, notes *string) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if p.VerificationStatus == VerificationVerified {
		return nil, ErrAlreadyVerified
	}

	now := time.Now()
	p.VerificationStatus = VerificationVerified
	p.VerifiedBy = &verifiedBy
	p.VerifiedAt = &now
	p.VerificationNotes = notes

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Reject marks a patient as rejected. Notes are mandatory: the registrar
// needs to know what to fix before resubmitting.
func (s *Service) Reject(ctx context.Context, id, rejectedBy int64, notes string) (*Patient, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, fmt.Errorf("rejection notes are required")
	}

	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	now := time.Now()
	p.VerificationStatus = VerificationRejected
	p.VerifiedBy = &rejectedBy
	p.VerifiedAt = &now
	p.VerificationNotes = &notes

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *ReferringDoctor) (*ReferringDoctor, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	d.IsActive = true
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, req UpdateDoctorRequest) (*ReferringDoctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, ErrDoctorNotFound
	}

	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Designation != nil {
		d.Designation = req.Designation
	}
	if req.Hospital != nil {
		d.Hospital = req.Hospital
	}
	if req.Phone != nil {
		d.Phone = req.Phone
	}
	if req.Email != nil {
		d.Email = req.Email
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}

	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeactivateDoctor soft-deletes so past registrations keep showing the
// consultant they were filed under.
func (s *Service) DeactivateDoctor(ctx context.Context, id int64) error {
	if _, err := s.doctors.GetByID(ctx, id); err != nil {
		return ErrDoctorNotFound
	}
	return s.doctors.Deactivate(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, isActive *bool) ([]*ReferringDoctor, error) {
	return s.doctors.List(ctx, isActive)
}
