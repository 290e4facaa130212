package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ReportHistory) error {
	query := `
		INSERT INTO report_history (
			report_id, actor_id, action, from_status, to_status, note, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		history.ReportID,
		history.ActorID,
		history.Action,
		history.FromStatus,
		history.ToStatus,
		history.Note,
		history.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Int64("report_id", history.ReportID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByReportID retrieves all history records for a report, oldest first
func (r *HistoryRepository) GetByReportID(ctx context.Context, reportID int64) ([]*entity.ReportHistory, error) {
	query := `
		SELECT id, report_id, actor_id, action, from_status, to_status, note, timestamp
		FROM report_history
		WHERE report_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, reportID)
	if err != nil {
		r.logger.Error("Failed to get history by report ID", zap.Int64("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []*entity.ReportHistory{}
	for rows.Next() {
		var record entity.ReportHistory
		err := rows.Scan(
			&record.ID,
			&record.ReportID,
			&record.ActorID,
			&record.Action,
			&record.FromStatus,
			&record.ToStatus,
			&record.Note,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// HasAction reports whether any history record of the report has one of actions
func (r *HistoryRepository) HasAction(ctx context.Context, reportID int64, actions ...string) (bool, error) {
	if len(actions) == 0 {
		return false, nil
	}

	args := make([]interface{}, 0, len(actions)+1)
	args = append(args, reportID)
	for _, a := range actions {
		args = append(args, a)
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM report_history
			WHERE report_id = ? AND action IN (` + placeholders(len(actions)) + `)
		)
	`

	var found bool
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		r.logger.Error("Failed to query history actions", zap.Int64("report_id", reportID), zap.Error(err))
		return false, fmt.Errorf("failed to query history: %w", err)
	}
	return found, nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
