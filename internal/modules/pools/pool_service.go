package pools

import (
	"context"
	"fmt"

	"poolcare-platform/internal/models"
	"poolcare-platform/internal/modules/dispatch"

	"github.com/google/uuid"
)

type ServiceInterface interface {
	Create(ctx context.Context, orgID string, req models.CreatePoolRequest) (*models.Pool, error)
	Get(ctx context.Context, orgID, poolID string) (*models.Pool, error)
	List(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Pool, int, error)
	Update(ctx context.Context, orgID, poolID string, req models.UpdatePoolRequest) (*models.Pool, error)
	Delete(ctx context.Context, orgID, poolID string) error
}

type service struct {
	repo     RepositoryInterface
	geocoder dispatch.Geocoder
}

func NewService(repo RepositoryInterface, geocoder dispatch.Geocoder) ServiceInterface {
	return &service{repo: repo, geocoder: geocoder}
}

func (s *service) Create(ctx context.Context, orgID string, req models.CreatePoolRequest) (*models.Pool, error) {
	ok, err := s.repo.ClientExists(ctx, orgID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("service.Create pool: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown client", models.ErrNotFound)
	}

	pool := &models.Pool{
		ID:       uuid.NewString(),
		OrgID:    orgID,
		ClientID: req.ClientID,
		Name:     req.Name,
		Address:  req.Address,
		Lat:      req.Lat,
		Lng:      req.Lng,
		VolumeL:  req.VolumeL,
		Notes:    req.Notes,
	}

	// Geocode when the caller supplied no coordinates. A provider failure
	// here is surfaced: a pool registered without coordinates would be
	// silently excluded from route optimization.
	if pool.Lat == nil || pool.Lng == nil {
		loc, err := s.geocoder.Geocode(ctx, orgID, req.Address)
		if err != nil {
			return nil, fmt.Errorf("service.Create pool: %w", err)
		}
		pool.Lat = &loc.Lat
		pool.Lng = &loc.Lng
	}

	if err := s.repo.Create(ctx, pool); err != nil {
		return nil, fmt.Errorf("service.Create pool: %w", err)
	}
	return pool, nil
}

func (s *service) Get(ctx context.Context, orgID, poolID string) (*models.Pool, error) {
	return s.repo.FindByID(ctx, orgID, poolID)
}

func (s *service) List(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Pool, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, orgID, clientID, page, limit)
}

func (s *service) Update(ctx context.Context, orgID, poolID string, req models.UpdatePoolRequest) (*models.Pool, error) {
	// A changed address with no explicit coordinates is re-geocoded so the
	// stored location never silently goes stale.
	if req.Address != nil && req.Lat == nil && req.Lng == nil {
		loc, err := s.geocoder.Geocode(ctx, orgID, *req.Address)
		if err != nil {
			return nil, fmt.Errorf("service.Update pool: %w", err)
		}
		req.Lat = &loc.Lat
		req.Lng = &loc.Lng
	}

	if err := s.repo.Update(ctx, orgID, poolID, req); err != nil {
		return nil, fmt.Errorf("service.Update pool: %w", err)
	}
	return s.repo.FindByID(ctx, orgID, poolID)
}

func (s *service) Delete(ctx context.Context, orgID, poolID string) error {
	return s.repo.Delete(ctx, orgID, poolID)
}
