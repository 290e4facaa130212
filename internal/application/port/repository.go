package port

import (
	"context"
	"errors"

	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/permission"
)

// ErrInFlightReportExists is returned by conditional writes when the creator
// already has another report awaiting review
var ErrInFlightReportExists = errors.New("creator already has a report in review")

// ReportFilter narrows a visible report listing
type ReportFilter struct {
	Status   string
	Period   string
	BranchID int64
	Limit    int
	Offset   int
}

// ReportRepository defines persistence operations for Report.
// Comments are loaded by GetByID but written through CommentRepository.
type ReportRepository interface {
	// Create inserts a report only if its creator has no in-flight report;
	// otherwise ErrInFlightReportExists
	Create(ctx context.Context, report *entity.Report) error

	// GetByID loads a report with its comments, or returns apperr.ErrNotFound
	GetByID(ctx context.Context, id int64) (*entity.Report, error)

	// Save writes the report only if its stored status still equals expectedPrior.
	// A changed status yields apperr.ErrConcurrencyConflict. When the new status is
	// in flight and expectedPrior is not, the write also requires that no other
	// report of the creator is in flight (ErrInFlightReportExists).
	Save(ctx context.Context, report *entity.Report, expectedPrior string) error

	// Delete removes the report only if its stored status equals expectedStatus
	Delete(ctx context.Context, id int64, expectedStatus string) error

	// CountInFlight counts the creator's reports in pending_subdistrict or pending_city
	CountInFlight(ctx context.Context, actorID int64) (int, error)

	// List returns reports inside scope matching filter, newest first
	List(ctx context.Context, scope permission.Scope, filter ReportFilter) ([]*entity.Report, error)
}

// CommentRepository defines persistence operations for Comment (insert-only)
type CommentRepository interface {
	Append(ctx context.Context, comment *entity.Comment) error
	ListByReport(ctx context.Context, reportID int64) ([]entity.Comment, error)
}

// HistoryRepository defines persistence operations for ReportHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ReportHistory) error
	GetByReportID(ctx context.Context, reportID int64) ([]*entity.ReportHistory, error)
	HasAction(ctx context.Context, reportID int64, actions ...string) (bool, error)
}

// LocationRepository provides read-only access to the location hierarchy
type LocationRepository interface {
	GetChain(ctx context.Context, branchID int64) (*entity.LocationChain, error)
	GetSubdistrict(ctx context.Context, id int64) (*entity.Subdistrict, error)
	GetCity(ctx context.Context, id int64) (*entity.City, error)
}

// ActorRepository resolves actor identities
type ActorRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Actor, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
