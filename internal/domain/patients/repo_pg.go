package patients

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

type patientRepoPG struct{}

func NewRepoPG() Repository {
	return &patientRepoPG{}
}

func (r *patientRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainHistoPatients)
	}
	return nil, db.ErrNoSession
}

const patientCols = `id, invoice_no, receive_date, reporting_date, patient_name,
	age, age_unit, sex, consultant_name, consultant_designation,
	investigation_type, clinical_information, phone, email, address,
	verification_status, verified_by, verified_at, verification_notes,
	created_by, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.InvoiceNo, &p.ReceiveDate, &p.ReportingDate,
		&p.PatientName, &p.Age, &p.AgeUnit, &p.Sex, &p.ConsultantName,
		&p.ConsultantDesignation, &p.InvestigationType, &p.ClinicalInformation,
		&p.Phone, &p.Email, &p.Address, &p.VerificationStatus, &p.VerifiedBy,
		&p.VerifiedAt, &p.VerificationNotes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO patients (invoice_no, receive_date, reporting_date, patient_name,
			age, age_unit, sex, consultant_name, consultant_designation,
			investigation_type, clinical_information, phone, email, address,
			verification_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`,
		p.InvoiceNo, p.ReceiveDate, p.ReportingDate, p.PatientName,
		p.Age, p.AgeUnit, p.Sex, p.ConsultantName, p.ConsultantDesignation,
		p.InvestigationType, p.ClinicalInformation, p.Phone, p.Email, p.Address,
		p.VerificationStatus, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanPatient(conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByInvoice(ctx context.Context, invoiceNo string) (*Patient, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanPatient(conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE invoice_no = $1`, invoiceNo))
}

func (r *patientRepoPG) LastInvoiceForYear(ctx context.Context, pattern string) (string, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return "", err
	}
	var invoiceNo string
	err = conn.QueryRow(ctx, `
		SELECT invoice_no FROM patients
		WHERE invoice_no LIKE $1
		ORDER BY id DESC LIMIT 1`, pattern).Scan(&invoiceNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return invoiceNo, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE patients SET receive_date=$2, reporting_date=$3, patient_name=$4,
			age=$5, age_unit=$6, sex=$7, consultant_name=$8, consultant_designation=$9,
			investigation_type=$10, clinical_information=$11, phone=$12, email=$13,
			address=$14, verification_status=$15, verified_by=$16, verified_at=$17,
			verification_notes=$18, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.ReceiveDate, p.ReportingDate, p.PatientName,
		p.Age, p.AgeUnit, p.Sex, p.ConsultantName, p.ConsultantDesignation,
		p.InvestigationType, p.ClinicalInformation, p.Phone, p.Email,
		p.Address, p.VerificationStatus, p.VerifiedBy, p.VerifiedAt,
		p.VerificationNotes)
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, f ListFilter) ([]*Patient, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.VerificationStatus != "" {
		query += fmt.Sprintf(` AND verification_status = $%d`, idx)
		args = append(args, f.VerificationStatus)
		idx++
	}
	if f.InvestigationType != "" {
		query += fmt.Sprintf(` AND investigation_type = $%d`, idx)
		args = append(args, f.InvestigationType)
		idx++
	}
	if f.Search != "" {
		query += fmt.Sprintf(` AND (patient_name ILIKE $%d OR invoice_no ILIKE $%d OR consultant_name ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) ListPending(ctx context.Context, limit, offset int) ([]*Patient, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE verification_status = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		VerificationPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

type doctorRepoPG struct{}

func NewDoctorRepoPG() DoctorRepository {
	return &doctorRepoPG{}
}

func (r *doctorRepoPG) conn(ctx context.Context) (queryable, error) {
	if s := db.SessionsFromContext(ctx); s != nil {
		return s.Conn(ctx, db.DomainHistoPatients)
	}
	return nil, db.ErrNoSession
}

const doctorCols = `id, name, designation, hospital, phone, email, is_active, created_at`

func scanDoctor(row pgx.Row) (*ReferringDoctor, error) {
	var d ReferringDoctor
	err := row.Scan(&d.ID, &d.Name, &d.Designation, &d.Hospital, &d.Phone,
		&d.Email, &d.IsActive, &d.CreatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *ReferringDoctor) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return conn.QueryRow(ctx, `
		INSERT INTO referring_doctors (name, designation, hospital, phone, email, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		d.Name, d.Designation, d.Hospital, d.Phone, d.Email, d.IsActive,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*ReferringDoctor, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanDoctor(conn.QueryRow(ctx, `SELECT `+doctorCols+` FROM referring_doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *ReferringDoctor) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `
		UPDATE referring_doctors SET name=$2, designation=$3, hospital=$4,
			phone=$5, email=$6, is_active=$7
		WHERE id = $1`,
		d.ID, d.Name, d.Designation, d.Hospital, d.Phone, d.Email, d.IsActive)
	return err
}

func (r *doctorRepoPG) Deactivate(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `UPDATE referring_doctors SET is_active = FALSE WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, isActive *bool) ([]*ReferringDoctor, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + doctorCols + ` FROM referring_doctors`
	var args []interface{}
	if isActive != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *isActive)
	}
	query += ` ORDER BY name`

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ReferringDoctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
