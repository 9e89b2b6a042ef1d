package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("report not found")

// WorkflowError is a refused operation: wrong status for the transition, a
// missing guard field, or a duplicate active report. Handlers answer 400
// with the message as-is.
type WorkflowError struct {
	Message string
}

func (e *WorkflowError) Error() string { return e.Message }

func workflowErrf(format string, args ...interface{}) error {
	return &WorkflowError{Message: fmt.Sprintf(format, args...)}
}

// Metrics is the subset of counters this service feeds.
type Metrics interface {
	ReportCreated()
	ReportTransition(action string)
}

type nopMetrics struct{}

func (nopMetrics) ReportCreated()            {}
func (nopMetrics) ReportTransition(a string) {}

type Service struct {
	reports Repository
	metrics Metrics
}

func NewService(reports Repository) *Service {
	return &Service{reports: reports, metrics: nopMetrics{}}
}

func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// snapshotContent captures the reviewable fields plus the status the report
// held when the snapshot was taken.
func snapshotContent(r *Report) map[string]interface{} {
	return map[string]interface{}{
		"specimen":                r.Specimen,
		"gross_examination":       r.GrossExamination,
		"microscopic_examination": r.MicroscopicExamination,
		"diagnosis":               r.Diagnosis,
		"special_stains":          r.SpecialStains,
		"immunohistochemistry":    r.Immunohistochemistry,
		"comments":                r.Comments,
		"status":                  r.Status,
	}
}

// snapshot appends the next version for a report. Runs inside the caller's
// transaction so the count+1 numbering stays gapless.
func snapshot(ctx context.Context, repo Repository, r *Report, changedBy int64, reason string) error {
	count, err := repo.CountVersions(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("count versions: %w", err)
	}
	return repo.InsertVersion(ctx, &Version{
		ReportID:      r.ID,
		VersionNumber: count + 1,
		Content:       snapshotContent(r),
		ChangedBy:     changedBy,
		ChangeReason:  &reason,
	})
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

// Create opens a draft report for a patient. An invoice can carry only one
// active (non-amended) report; amendments get their own rows via Amend.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy int64) (*Report, error) {
	if req.PatientID == 0 || req.InvoiceNo == "" {
		return nil, workflowErrf("patient_id and invoice_no are required")
	}
	if req.ReportType == "" {
		req.ReportType = TypeHistopathology
	}
	if req.ReportType != TypeHistopathology && req.ReportType != TypeCytopathology {
		return nil, workflowErrf("invalid report_type: %s", req.ReportType)
	}

	existing, err := s.reports.ActiveByInvoice(ctx, req.InvoiceNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, workflowErrf("Report already exists for invoice %s", req.InvoiceNo)
	}

	rep := &Report{
		PatientID:              req.PatientID,
		InvoiceNo:              req.InvoiceNo,
		ReportType:             req.ReportType,
		Specimen:               req.Specimen,
		GrossExamination:       req.GrossExamination,
		MicroscopicExamination: req.MicroscopicExamination,
		Diagnosis:              req.Diagnosis,
		ICDCode:                req.ICDCode,
		SpecialStains:          req.SpecialStains,
		Immunohistochemistry:   req.Immunohistochemistry,
		Comments:               req.Comments,
		Status:                 StatusDraft,
		CreatedBy:              createdBy,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		return nil, err
	}
	s.metrics.ReportCreated()
	return rep, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Report, error) {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return rep, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Report, error) {
	return s.reports.List(ctx, f)
}

func (s *Service) ListPending(ctx context.Context) ([]*Report, error) {
	return s.reports.ListPending(ctx)
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceNo string) ([]*Report, error) {
	return s.reports.ListByInvoice(ctx, invoiceNo)
}

func (s *Service) Versions(ctx context.Context, reportID int64) ([]*Version, error) {
	return s.reports.ListVersions(ctx, reportID)
}

// Update edits report content. Allowed only while the report is still being
// drafted or awaiting verification; after that the content is what was
// reviewed and only the workflow can change the row.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Report, error) {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if rep.Status != StatusDraft && rep.Status != StatusPendingVerification {
		return nil, workflowErrf("Cannot edit report in '%s' status", rep.Status)
	}

	if req.ReportType != nil {
		if *req.ReportType != TypeHistopathology && *req.ReportType != TypeCytopathology {
			return nil, workflowErrf("invalid report_type: %s", *req.ReportType)
		}
		rep.ReportType = *req.ReportType
	}
	if req.Specimen != nil {
		rep.Specimen = req.Specimen
	}
	if req.GrossExamination != nil {
		rep.GrossExamination = req.GrossExamination
	}
	if req.MicroscopicExamination != nil {
		rep.MicroscopicExamination = req.MicroscopicExamination
	}
	if req.Diagnosis != nil {
		rep.Diagnosis = req.Diagnosis
	}
	if req.ICDCode != nil {
		rep.ICDCode = req.ICDCode
	}
	if req.SpecialStains != nil {
		rep.SpecialStains = req.SpecialStains
	}
	if req.Immunohistochemistry != nil {
		rep.Immunohistochemistry = req.Immunohistochemistry
	}
	if req.Comments != nil {
		rep.Comments = req.Comments
	}
	if req.AIAssisted != nil {
		rep.AIAssisted = *req.AIAssisted
	}

	if err := s.reports.Update(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// Delete removes a report that never entered the workflow.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if rep.Status != StatusDraft {
		return workflowErrf("Can only delete draft reports")
	}
	return s.reports.Delete(ctx, id)
}

// Submit moves a draft into pending_verification. Specimen and diagnosis
// must be filled in before a report can leave draft.
func (s *Service) Submit(ctx context.Context, id, actor int64) (*Report, error) {
	var out *Report
	err := s.reports.Transact(ctx, func(repo Repository) error {
		rep, err := repo.GetByID(ctx, id)
		if err != nil {
			return ErrNotFound
		}
		if rep.Status != StatusDraft {
			return workflowErrf("Cannot submit report in '%s' status", rep.Status)
		}
		if isBlank(rep.Specimen) || isBlank(rep.Diagnosis) {
			return workflowErrf("Specimen and Diagnosis are required to submit")
		}

		if err := snapshot(ctx, repo, rep, actor, "Submitted for verification"); err != nil {
			return err
		}
		rep.Status = StatusPendingVerification
		if err := repo.Update(ctx, rep); err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ReportTransition("submit")
	return out, nil
}

// Verify approves a submitted report.
func (s *Service) Verify(ctx context.Context, id, actor int64) (*Report, error) {
	var out *Report
	err := s.reports.Transact(ctx, func(repo Repository) error {
		rep, err := repo.GetByID(ctx, id)
		if err != nil {
			return ErrNotFound
		}
		if rep.Status != StatusPendingVerification {
			return workflowErrf("Cannot verify report in '%s' status", rep.Status)
		}

		if err := snapshot(ctx, repo, rep, actor, "Verified by admin"); err != nil {
			return err
		}
		now := time.Now()
		rep.Status = StatusVerified
		rep.VerifiedBy = &actor
		rep.VerifiedAt = &now
		if err := repo.Update(ctx, rep); err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ReportTransition("verify")
	return out, nil
}

// Reject sends a submitted report back to draft. The reason is prepended to
// the comments field so the author sees it on their next edit.
func (s *Service) Reject(ctx context.Context, id, actor int64, reason string) (*Report, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, workflowErrf("Rejection reason is required")
	}

	var out *Report
	err := s.reports.Transact(ctx, func(repo Repository) error {
		rep, err := repo.GetByID(ctx, id)
		if err != nil {
			return ErrNotFound
		}
		if rep.Status != StatusPendingVerification {
			return workflowErrf("Cannot reject report in '%s' status", rep.Status)
		}

		if err := snapshot(ctx, repo, rep, actor, "Rejected: "+reason); err != nil {
			return err
		}
		old := ""
		if rep.Comments != nil {
			old = *rep.Comments
		}
		annotated := fmt.Sprintf("[REJECTED] %s\n\n%s", reason, old)
		rep.Status = StatusDraft
		rep.Comments = &annotated
		if err := repo.Update(ctx, rep); err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ReportTransition("reject")
	return out, nil
}

// Sign records the pathologist's signature on a verified report.
//
// TODO: check signaturePassword against the signer's certificate once
// certificate storage lands; for now the field is accepted unverified.
func (s *Service) Sign(ctx context.Context, id, actor int64, signaturePassword string) (*Report, error) {
	var out *Report
	err := s.reports.Transact(ctx, func(repo Repository) error {
		rep, err := repo.GetByID(ctx, id)
		if err != nil {
			return ErrNotFound
		}
		if rep.Status != StatusVerified {
			return workflowErrf("Cannot sign report in '%s' status. Must be verified first.", rep.Status)
		}

		if err := snapshot(ctx, repo, rep, actor, "Signed by doctor"); err != nil {
			return err
		}
		now := time.Now()
		rep.Status = StatusSigned
		rep.SignedBy = &actor
		rep.SignedAt = &now
		if err := repo.Update(ctx, rep); err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ReportTransition("sign")
	return out, nil
}

// Publish releases a signed report.
func (s *Service) Publish(ctx context.Context, id, actor int64) (*Report, error) {
	var out *Report
	err := s.reports.Transact(ctx, func(repo Repository) error {
		rep, err := repo.GetByID(ctx, id)
		if err != nil {
			return ErrNotFound
		}
		if rep.Status != StatusSigned {
			return workflowErrf("Cannot publish report in '%s' status. Must be signed first.", rep.Status)
		}

		if err := snapshot(ctx, repo, rep, actor, "Published"); err != nil {
			return err
		}
		now := time.Now()
		rep.Status = StatusPublished
		rep.PublishedAt = &now
		if err := repo.Update(ctx, rep); err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ReportTransition("publish")
	return out, nil
}

// Amend starts a correction to a published report: a fresh draft row copying
// the published content, marked is_amended and pointing back at the
// original. The published row is never touched, and no snapshot is taken
// until the new draft is itself submitted.
func (s *Service) Amend(ctx context.Context, id, actor int64, reason string) (*Report, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, workflowErrf("Amendment reason is required")
	}

	orig, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if orig.Status != StatusPublished {
		return nil, workflowErrf("Can only amend published reports")
	}

	amended := &Report{
		PatientID:              orig.PatientID,
		InvoiceNo:              orig.InvoiceNo,
		ReportType:             orig.ReportType,
		Specimen:               orig.Specimen,
		GrossExamination:       orig.GrossExamination,
		MicroscopicExamination: orig.MicroscopicExamination,
		Diagnosis:              orig.Diagnosis,
		ICDCode:                orig.ICDCode,
		SpecialStains:          orig.SpecialStains,
		Immunohistochemistry:   orig.Immunohistochemistry,
		Comments:               orig.Comments,
		Status:                 StatusDraft,
		CreatedBy:              actor,
		IsAmended:              true,
		AmendmentReason:        &reason,
		OriginalReportID:       &orig.ID,
	}
	if err := s.reports.Create(ctx, amended); err != nil {
		return nil, err
	}
	s.metrics.ReportCreated()
	s.metrics.ReportTransition("amend")
	return amended, nil
}
