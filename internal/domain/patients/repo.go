package patients

import "context"

// Repository is the persistence boundary for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetByInvoice(ctx context.Context, invoiceNo string) (*Patient, error)
	// LastInvoiceForYear returns the invoice_no of the most recently created
	// patient whose invoice matches the given LIKE pattern, or "" when the
	// year has no patients yet.
	LastInvoiceForYear(ctx context.Context, pattern string) (string, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]*Patient, error)
	ListPending(ctx context.Context, limit, offset int) ([]*Patient, error)
}

// DoctorRepository is the persistence boundary for referring doctors.
type DoctorRepository interface {
	Create(ctx context.Context, d *ReferringDoctor) error
	GetByID(ctx context.Context, id int64) (*ReferringDoctor, error)
	Update(ctx context.Context, d *ReferringDoctor) error
	Deactivate(ctx context.Context, id int64) error
	List(ctx context.Context, isActive *bool) ([]*ReferringDoctor, error)
}
