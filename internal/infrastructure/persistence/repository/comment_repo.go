package repository

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/sqlite"
)

// CommentRepository implements port.CommentRepository
type CommentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sqlite.DB, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a comment on an existing report
func (r *CommentRepository) Append(ctx context.Context, comment *entity.Comment) error {
	query := `
		INSERT INTO report_comments (report_id, author_id, author_name, body, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM reports WHERE id = ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		comment.ReportID,
		comment.AuthorID,
		comment.AuthorName,
		comment.Body,
		comment.CreatedAt,
		comment.ReportID,
	)
	if err != nil {
		r.logger.Error("Failed to append comment", zap.Int64("report_id", comment.ReportID), zap.Error(err))
		return fmt.Errorf("failed to append comment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("report %d", comment.ReportID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	comment.ID = id
	return nil
}

// ListByReport retrieves a report's comments in insertion order
func (r *CommentRepository) ListByReport(ctx context.Context, reportID int64) ([]entity.Comment, error) {
	return listComments(ctx, r.db.Executor(ctx), reportID)
}

func listComments(ctx context.Context, exec sqlite.Execer, reportID int64) ([]entity.Comment, error) {
	query := `
		SELECT id, report_id, author_id, author_name, body, created_at
		FROM report_comments
		WHERE report_id = ?
		ORDER BY id ASC
	`

	rows, err := exec.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []entity.Comment{}
	for rows.Next() {
		var c entity.Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// attachComments loads the comments of every listed report in one query
func attachComments(ctx context.Context, exec sqlite.Execer, reports map[int64]*entity.Report) error {
	if len(reports) == 0 {
		return nil
	}

	ids := make([]interface{}, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}

	query := `
		SELECT id, report_id, author_id, author_name, body, created_at
		FROM report_comments
		WHERE report_id IN (` + placeholders(len(ids)) + `)
		ORDER BY id ASC
	`

	rows, err := exec.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c entity.Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		if report, ok := reports[c.ReportID]; ok {
			report.Comments = append(report.Comments, c)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Verify interface compliance
var _ port.CommentRepository = (*CommentRepository)(nil)
