package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/domain/permission"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/sqlite"
)

const reportColumns = `
	id, period, status, created_by,
	branch_id, branch_name, subdistrict_id, subdistrict_name, city_id, city_name,
	stock, expenses, income, notes, rejection_reason,
	created_at, updated_at, submitted_at, approved_at`

// inFlightOf matches another in-flight report of the same creator
const inFlightOf = `
	SELECT 1 FROM reports o
	WHERE o.created_by = ? AND o.id <> ?
	  AND o.status IN ('pending_subdistrict', 'pending_city')`

// ReportRepository implements port.ReportRepository
type ReportRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlite.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the report unless its creator already has one in review
func (r *ReportRepository) Create(ctx context.Context, report *entity.Report) error {
	query := `
		INSERT INTO reports (
			period, status, created_by,
			branch_id, branch_name, subdistrict_id, subdistrict_name, city_id, city_name,
			stock, expenses, income, notes, rejection_reason,
			created_at, updated_at, submitted_at, approved_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (` + inFlightOf + `)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		report.Period,
		report.Status,
		report.CreatedBy,
		report.BranchID,
		report.BranchName,
		report.SubdistrictID,
		report.SubdistrictName,
		report.CityID,
		report.CityName,
		report.Stock,
		report.Expenses,
		report.Income,
		report.Notes,
		report.RejectionReason,
		report.CreatedAt,
		report.UpdatedAt,
		nullTime(report.SubmittedAt),
		nullTime(report.ApprovedAt),
		report.CreatedBy,
		0,
	)
	if err != nil {
		if isInFlightViolation(err) {
			return port.ErrInFlightReportExists
		}
		r.logger.Error("Failed to create report", zap.Int64("created_by", report.CreatedBy), zap.Error(err))
		return fmt.Errorf("failed to create report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return port.ErrInFlightReportExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	return nil
}

// GetByID retrieves a report and its comments
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

	report, err := scanReport(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("report %d", id)
	}
	if err != nil {
		r.logger.Error("Failed to get report by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	comments, err := listComments(ctx, r.db.Executor(ctx), id)
	if err != nil {
		return nil, err
	}
	report.Comments = comments
	return report, nil
}

// Save updates the report if its stored status is still expectedPrior
func (r *ReportRepository) Save(ctx context.Context, report *entity.Report, expectedPrior string) error {
	guardInFlight := report.IsInFlight() && !entity.IsInFlightStatus(expectedPrior)

	query := `
		UPDATE reports SET
			period = ?, status = ?,
			branch_id = ?, branch_name = ?, subdistrict_id = ?, subdistrict_name = ?,
			city_id = ?, city_name = ?,
			stock = ?, expenses = ?, income = ?, notes = ?, rejection_reason = ?,
			updated_at = ?, submitted_at = ?, approved_at = ?
		WHERE id = ? AND status = ?
		  AND (? = 0 OR NOT EXISTS (` + inFlightOf + `))
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		report.Period,
		report.Status,
		report.BranchID,
		report.BranchName,
		report.SubdistrictID,
		report.SubdistrictName,
		report.CityID,
		report.CityName,
		report.Stock,
		report.Expenses,
		report.Income,
		report.Notes,
		report.RejectionReason,
		report.UpdatedAt,
		nullTime(report.SubmittedAt),
		nullTime(report.ApprovedAt),
		report.ID,
		expectedPrior,
		boolInt(guardInFlight),
		report.CreatedBy,
		report.ID,
	)
	if err != nil {
		if isInFlightViolation(err) {
			return port.ErrInFlightReportExists
		}
		r.logger.Error("Failed to save report", zap.Int64("id", report.ID), zap.Error(err))
		return fmt.Errorf("failed to save report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	return r.explainMiss(ctx, report.ID, expectedPrior, port.ErrInFlightReportExists)
}

// Delete removes the report if its stored status is still expectedStatus
func (r *ReportRepository) Delete(ctx context.Context, id int64, expectedStatus string) error {
	if !entity.IsEditableStatus(expectedStatus) {
		return fmt.Errorf("%w: report %d cannot be deleted while %s", apperr.ErrInvalidTransition, id, expectedStatus)
	}
	query := `DELETE FROM reports WHERE id = ? AND status = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, id, expectedStatus)
	if err != nil {
		r.logger.Error("Failed to delete report", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	return r.explainMiss(ctx, id, expectedStatus, nil)
}

// explainMiss classifies a conditional write that touched no row
func (r *ReportRepository) explainMiss(ctx context.Context, id int64, expected string, otherwise error) error {
	var current string
	err := r.db.Executor(ctx).QueryRowContext(ctx, `SELECT status FROM reports WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("report %d", id)
	}
	if err != nil {
		return fmt.Errorf("failed to read report status: %w", err)
	}
	if current != expected {
		return apperr.Conflict("report %d is %s, expected %s", id, current, expected)
	}
	if otherwise != nil {
		return otherwise
	}
	return apperr.Conflict("report %d changed concurrently", id)
}

// CountInFlight counts the creator's reports under review
func (r *ReportRepository) CountInFlight(ctx context.Context, actorID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM reports
		WHERE created_by = ? AND status IN ('pending_subdistrict', 'pending_city')
	`

	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, actorID).Scan(&n); err != nil {
		r.logger.Error("Failed to count in-flight reports", zap.Int64("actor_id", actorID), zap.Error(err))
		return 0, fmt.Errorf("failed to count in-flight reports: %w", err)
	}
	return n, nil
}

// List retrieves reports inside scope, newest first
func (r *ReportRepository) List(ctx context.Context, scope permission.Scope, filter port.ReportFilter) ([]*entity.Report, error) {
	where, args, ok := scopeClause(scope)
	if !ok {
		return []*entity.Report{}, nil
	}

	conds := []string{where}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Period != "" {
		conds = append(conds, "period = ?")
		args = append(args, filter.Period)
	}
	if filter.BranchID != 0 {
		conds = append(conds, "branch_id = ?")
		args = append(args, filter.BranchID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	query := `SELECT ` + reportColumns + ` FROM reports WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY id DESC LIMIT ? OFFSET ?`

	exec := r.db.Executor(ctx)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.String("scope", string(scope.Level)), zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*entity.Report{}
	byID := make(map[int64]*entity.Report)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report.Comments = []entity.Comment{}
		reports = append(reports, report)
		byID[report.ID] = report
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := attachComments(ctx, exec, byID); err != nil {
		return nil, err
	}
	return reports, nil
}

// scopeClause translates a visibility scope into a WHERE fragment.
// ok is false when the scope can match nothing.
func scopeClause(scope permission.Scope) (string, []interface{}, bool) {
	column := func(idCol, nameCol string) (string, []interface{}, bool) {
		if scope.Mode == permission.ScopeByID {
			return idCol + " = ?", []interface{}{scope.ID}, scope.ID > 0
		}
		return nameCol + " = ?", []interface{}{scope.Name}, scope.Name != ""
	}

	switch scope.Level {
	case permission.ScopeOwner:
		return "created_by = ?", []interface{}{scope.ActorID}, true
	case permission.ScopeSubdistrict:
		return column("subdistrict_id", "subdistrict_name")
	case permission.ScopeCity:
		return column("city_id", "city_name")
	default:
		return "", nil, false
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entity.Report, error) {
	var report entity.Report
	var submittedAt, approvedAt sql.NullTime

	err := row.Scan(
		&report.ID,
		&report.Period,
		&report.Status,
		&report.CreatedBy,
		&report.BranchID,
		&report.BranchName,
		&report.SubdistrictID,
		&report.SubdistrictName,
		&report.CityID,
		&report.CityName,
		&report.Stock,
		&report.Expenses,
		&report.Income,
		&report.Notes,
		&report.RejectionReason,
		&report.CreatedAt,
		&report.UpdatedAt,
		&submittedAt,
		&approvedAt,
	)
	if err != nil {
		return nil, err
	}

	if submittedAt.Valid {
		report.SubmittedAt = &submittedAt.Time
	}
	if approvedAt.Valid {
		report.ApprovedAt = &approvedAt.Time
	}
	return &report, nil
}

// isInFlightViolation recognizes the one-in-flight partial unique index
func isInFlightViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "reports.created_by")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Verify interface compliance
var _ port.ReportRepository = (*ReportRepository)(nil)
