package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
)

// LocationService resolves the branch -> subdistrict -> city hierarchy
type LocationService interface {
	// ResolveChain loads the membership chain of a branch
	ResolveChain(ctx context.Context, branchID int64) (*entity.LocationChain, error)

	// ValidateTriple checks that the three supplied ids form a consistent chain
	ValidateTriple(ctx context.Context, branchID, subdistrictID, cityID int64) (*entity.LocationChain, error)

	// ResolveActor fills an actor's assignment ids and names from reference data
	ResolveActor(ctx context.Context, actor entity.Actor) (entity.Actor, error)
}

type locationServiceImpl struct {
	locationRepo port.LocationRepository
	logger       Logger
}

// NewLocationService creates a new LocationService
func NewLocationService(locationRepo port.LocationRepository, logger Logger) LocationService {
	return &locationServiceImpl{
		locationRepo: locationRepo,
		logger:       logger,
	}
}

// ResolveChain loads the membership chain of a branch
func (s *locationServiceImpl) ResolveChain(ctx context.Context, branchID int64) (*entity.LocationChain, error) {
	chain, err := s.locationRepo.GetChain(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %d: %w", branchID, err)
	}
	return chain, nil
}

// ValidateTriple checks that the three supplied ids form a consistent chain.
// An unknown branch is a validation failure of the input, not a missing resource.
func (s *locationServiceImpl) ValidateTriple(ctx context.Context, branchID, subdistrictID, cityID int64) (*entity.LocationChain, error) {
	chain, err := s.locationRepo.GetChain(ctx, branchID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Field("branch_id", "branch %d does not exist", branchID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %d: %w", branchID, err)
	}

	verr := apperr.NewValidationError(nil)
	if chain.SubdistrictID != subdistrictID {
		verr.Add("subdistrict_id", "branch %d belongs to subdistrict %d, not %d", branchID, chain.SubdistrictID, subdistrictID)
	}
	if chain.CityID != cityID {
		verr.Add("city_id", "subdistrict %d belongs to city %d, not %d", chain.SubdistrictID, chain.CityID, cityID)
	}
	if verr.HasErrors() {
		s.logger.Info("Inconsistent location triple",
			"branch_id", branchID,
			"subdistrict_id", subdistrictID,
			"city_id", cityID,
		)
		return nil, verr
	}

	return chain, nil
}

// ResolveActor fills an actor's assignment ids and names from reference data
func (s *locationServiceImpl) ResolveActor(ctx context.Context, actor entity.Actor) (entity.Actor, error) {
	switch actor.Role {
	case entity.RoleBranchUser:
		chain, err := s.locationRepo.GetChain(ctx, actor.BranchID)
		if err != nil {
			return actor, fmt.Errorf("resolve branch of actor %d: %w", actor.ID, err)
		}
		actor.BranchName = chain.BranchName
		actor.SubdistrictID = chain.SubdistrictID
		actor.SubdistrictName = chain.SubdistrictName
		actor.CityID = chain.CityID
		actor.CityName = chain.CityName

	case entity.RoleSubdistrictAdmin:
		if actor.SubdistrictID > 0 {
			sd, err := s.locationRepo.GetSubdistrict(ctx, actor.SubdistrictID)
			if err != nil {
				return actor, fmt.Errorf("resolve subdistrict of actor %d: %w", actor.ID, err)
			}
			actor.SubdistrictName = sd.Name
		}

	case entity.RoleCityAdmin:
		if actor.CityID > 0 {
			city, err := s.locationRepo.GetCity(ctx, actor.CityID)
			if err != nil {
				return actor, fmt.Errorf("resolve city of actor %d: %w", actor.ID, err)
			}
			actor.CityName = city.Name
		}
	}

	if err := actor.Validate(); err != nil {
		return actor, fmt.Errorf("%w: %v", apperr.ErrPermissionDenied, err)
	}
	return actor, nil
}
