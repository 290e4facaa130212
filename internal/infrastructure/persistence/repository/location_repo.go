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

// LocationRepository implements port.LocationRepository over the reference tables
type LocationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *sqlite.DB, logger *zap.Logger) *LocationRepository {
	return &LocationRepository{
		db:     db,
		logger: logger,
	}
}

// GetChain resolves a branch to its subdistrict and city
func (r *LocationRepository) GetChain(ctx context.Context, branchID int64) (*entity.LocationChain, error) {
	query := `
		SELECT b.id, b.name, s.id, s.name, c.id, c.name
		FROM branches b
		JOIN subdistricts s ON s.id = b.subdistrict_id
		JOIN cities c ON c.id = s.city_id
		WHERE b.id = ?
	`

	var chain entity.LocationChain
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, branchID).Scan(
		&chain.BranchID,
		&chain.BranchName,
		&chain.SubdistrictID,
		&chain.SubdistrictName,
		&chain.CityID,
		&chain.CityName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("branch %d", branchID)
	}
	if err != nil {
		r.logger.Error("Failed to resolve branch chain", zap.Int64("branch_id", branchID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve branch: %w", err)
	}
	return &chain, nil
}

// GetSubdistrict retrieves a subdistrict by ID
func (r *LocationRepository) GetSubdistrict(ctx context.Context, id int64) (*entity.Subdistrict, error) {
	var sd entity.Subdistrict
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, name, city_id FROM subdistricts WHERE id = ?`, id,
	).Scan(&sd.ID, &sd.Name, &sd.CityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("subdistrict %d", id)
	}
	if err != nil {
		r.logger.Error("Failed to get subdistrict", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get subdistrict: %w", err)
	}
	return &sd, nil
}

// GetCity retrieves a city by ID
func (r *LocationRepository) GetCity(ctx context.Context, id int64) (*entity.City, error) {
	var city entity.City
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, name FROM cities WHERE id = ?`, id,
	).Scan(&city.ID, &city.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("city %d", id)
	}
	if err != nil {
		r.logger.Error("Failed to get city", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	return &city, nil
}

// Verify interface compliance
var _ port.LocationRepository = (*LocationRepository)(nil)
