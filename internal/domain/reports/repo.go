package reports

import "context"

// Repository is the persistence boundary for reports and their version
// snapshots. Both live in the histo_reports database, which is what lets
// Transact cover a snapshot and the status change it precedes with one
// transaction.
type Repository interface {
	// Transact runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transact(ctx context.Context, fn func(Repository) error) error

	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id int64) (*Report, error)
	// ActiveByInvoice returns the non-amended report for an invoice, or nil
	// when the invoice has none.
	ActiveByInvoice(ctx context.Context, invoiceNo string) (*Report, error)
	Update(ctx context.Context, r *Report) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter) ([]*Report, error)
	ListPending(ctx context.Context) ([]*Report, error)
	ListByInvoice(ctx context.Context, invoiceNo string) ([]*Report, error)

	CountVersions(ctx context.Context, reportID int64) (int, error)
	InsertVersion(ctx context.Context, v *Version) error
	ListVersions(ctx context.Context, reportID int64) ([]*Version, error)
}
