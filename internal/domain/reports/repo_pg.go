package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/southerniot/dashboard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// reportRepoPG runs against the request's session connection, or against a
// pinned transaction when created through Transact.
type reportRepoPG struct {
	tx pgx.Tx
}

func NewRepoPG() Repository {
	return &reportRepoPG{}
}

func (r *reportRepoPG) conn(ctx context.Context) (queryable, error) {
	if r.tx != nil {
		return r.tx, nil
	}
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainHistoReports)
	}
	return nil, db.ErrNoSession
}

func (r *reportRepoPG) Transact(ctx context.Context, fn func(Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	s := db.SessionsFromContext(ctx)
	if s == nil {
		return db.ErrNoSession
	}
	conn, err := s.Conn(ctx, db.DomainHistoReports)
	if err != nil {
		return err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&reportRepoPG{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const reportCols = `id, patient_id, invoice_no, report_type, specimen,
	gross_examination, microscopic_examination, diagnosis, icd_code,
	special_stains, immunohistochemistry, comments, ai_assisted, status,
	created_by, created_at, updated_at, verified_by, verified_at,
	signed_by, signed_at, published_at, is_amended, amendment_reason,
	original_report_id`

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.PatientID, &r.InvoiceNo, &r.ReportType, &r.Specimen,
		&r.GrossExamination, &r.MicroscopicExamination, &r.Diagnosis, &r.ICDCode,
		&r.SpecialStains, &r.Immunohistochemistry, &r.Comments, &r.AIAssisted,
		&r.Status, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt, &r.VerifiedBy,
		&r.VerifiedAt, &r.SignedBy, &r.SignedAt, &r.PublishedAt, &r.IsAmended,
		&r.AmendmentReason, &r.OriginalReportID)
	return &r, err
}

func (r *reportRepoPG) Create(ctx context.Context, rep *Report) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO reports (patient_id, invoice_no, report_type, specimen,
			gross_examination, microscopic_examination, diagnosis, icd_code,
			special_stains, immunohistochemistry, comments, ai_assisted,
			status, created_by, is_amended, amendment_reason, original_report_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`,
		rep.PatientID, rep.InvoiceNo, rep.ReportType, rep.Specimen,
		rep.GrossExamination, rep.MicroscopicExamination, rep.Diagnosis, rep.ICDCode,
		rep.SpecialStains, rep.Immunohistochemistry, rep.Comments, rep.AIAssisted,
		rep.Status, rep.CreatedBy, rep.IsAmended, rep.AmendmentReason, rep.OriginalReportID,
	).Scan(&rep.ID, &rep.CreatedAt)
}

func (r *reportRepoPG) GetByID(ctx context.Context, id int64) (*Report, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanReport(conn.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
}

func (r *reportRepoPG) ActiveByInvoice(ctx context.Context, invoiceNo string) (*Report, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rep, err := scanReport(conn.QueryRow(ctx, `
		SELECT `+reportCols+` FROM reports
		WHERE invoice_no = $1 AND is_amended = FALSE
		LIMIT 1`, invoiceNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *reportRepoPG) Update(ctx context.Context, rep *Report) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE reports SET report_type=$2, specimen=$3, gross_examination=$4,
			microscopic_examination=$5, diagnosis=$6, icd_code=$7,
			special_stains=$8, immunohistochemistry=$9, comments=$10,
			ai_assisted=$11, status=$12, verified_by=$13, verified_at=$14,
			signed_by=$15, signed_at=$16, published_at=$17, updated_at=NOW()
		WHERE id = $1`,
		rep.ID, rep.ReportType, rep.Specimen, rep.GrossExamination,
		rep.MicroscopicExamination, rep.Diagnosis, rep.ICDCode,
		rep.SpecialStains, rep.Immunohistochemistry, rep.Comments,
		rep.AIAssisted, rep.Status, rep.VerifiedBy, rep.VerifiedAt,
		rep.SignedBy, rep.SignedAt, rep.PublishedAt)
	return err
}

func (r *reportRepoPG) Delete(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	return err
}

func (r *reportRepoPG) List(ctx context.Context, f ListFilter) ([]*Report, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + reportCols + ` FROM reports WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.ReportType != "" {
		query += fmt.Sprintf(` AND report_type = $%d`, idx)
		args = append(args, f.ReportType)
		idx++
	}
	if f.InvoiceNo != "" {
		query += fmt.Sprintf(` AND invoice_no ILIKE $%d`, idx)
		args = append(args, "%"+f.InvoiceNo+"%")
		idx++
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	return r.queryReports(ctx, conn, query, args...)
}

func (r *reportRepoPG) ListPending(ctx context.Context) ([]*Report, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryReports(ctx, conn, `
		SELECT `+reportCols+` FROM reports
		WHERE status = $1
		ORDER BY created_at DESC`, StatusPendingVerification)
}

func (r *reportRepoPG) ListByInvoice(ctx context.Context, invoiceNo string) ([]*Report, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryReports(ctx, conn, `
		SELECT `+reportCols+` FROM reports
		WHERE invoice_no = $1
		ORDER BY created_at DESC`, invoiceNo)
}

func (r *reportRepoPG) queryReports(ctx context.Context, conn queryable, query string, args ...interface{}) ([]*Report, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	return items, rows.Err()
}

// -- Versions --

const versionCols = `id, report_id, version_number, content, changed_by, change_reason, created_at`

func (r *reportRepoPG) CountVersions(ctx context.Context, reportID int64) (int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	var total int
	err = conn.QueryRow(ctx, `SELECT COUNT(*) FROM report_versions WHERE report_id = $1`, reportID).Scan(&total)
	return total, err
}

func (r *reportRepoPG) InsertVersion(ctx context.Context, v *Version) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO report_versions (report_id, version_number, content, changed_by, change_reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		v.ReportID, v.VersionNumber, v.Content, v.ChangedBy, v.ChangeReason,
	).Scan(&v.ID, &v.CreatedAt)
}

func (r *reportRepoPG) ListVersions(ctx context.Context, reportID int64) ([]*Version, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+versionCols+` FROM report_versions
		WHERE report_id = $1
		ORDER BY version_number DESC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.ReportID, &v.VersionNumber, &v.Content,
			&v.ChangedBy, &v.ChangeReason, &v.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &v)
	}
	return items, rows.Err()
}
