package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/sqlite"
)

// ActorRepository implements port.ActorRepository.
// Only assignment ids are stored; names come from the location hierarchy.
type ActorRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewActorRepository creates a new actor repository
func NewActorRepository(db *sqlite.DB, logger *zap.Logger) *ActorRepository {
	return &ActorRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves an actor by ID
func (r *ActorRepository) GetByID(ctx context.Context, id int64) (*entity.Actor, error) {
	query := `SELECT id, name, role, branch_id, subdistrict_id, city_id FROM actors WHERE id = ?`

	var (
		actor                         entity.Actor
		role                          string
		branchID, subdistrictID, city sql.NullInt64
	)
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&actor.ID,
		&actor.Name,
		&role,
		&branchID,
		&subdistrictID,
		&city,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("actor %d", id)
	}
	if err != nil {
		r.logger.Error("Failed to get actor", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	actor.Role = entity.Role(role)
	actor.BranchID = branchID.Int64
	actor.SubdistrictID = subdistrictID.Int64
	actor.CityID = city.Int64
	return &actor, nil
}

// Verify interface compliance
var _ port.ActorRepository = (*ActorRepository)(nil)
