package clients

import (
	"context"
	"fmt"

	"poolcare-platform/internal/models"

	"github.com/google/uuid"
)

type ServiceInterface interface {
	Create(ctx context.Context, orgID string, req models.CreateClientRequest) (*models.Client, error)
	Get(ctx context.Context, orgID, clientID string) (*models.Client, error)
	List(ctx context.Context, orgID string, page, limit int) ([]*models.Client, int, error)
	Update(ctx context.Context, orgID, clientID string, req models.UpdateClientRequest) (*models.Client, error)
	Delete(ctx context.Context, orgID, clientID string) error
}

type service struct {
	repo RepositoryInterface
}

func NewService(repo RepositoryInterface) ServiceInterface {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, orgID string, req models.CreateClientRequest) (*models.Client, error) {
	client := &models.Client{
		ID:      uuid.NewString(),
		OrgID:   orgID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("service.Create client: %w", err)
	}
	return client, nil
}

func (s *service) Get(ctx context.Context, orgID, clientID string) (*models.Client, error) {
	return s.repo.FindByID(ctx, orgID, clientID)
}

func (s *service) List(ctx context.Context, orgID string, page, limit int) ([]*models.Client, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, orgID, page, limit)
}

func (s *service) Update(ctx context.Context, orgID, clientID string, req models.UpdateClientRequest) (*models.Client, error) {
	if err := s.repo.Update(ctx, orgID, clientID, req); err != nil {
		return nil, fmt.Errorf("service.Update client: %w", err)
	}
	return s.repo.FindByID(ctx, orgID, clientID)
}

func (s *service) Delete(ctx context.Context, orgID, clientID string) error {
	return s.repo.Delete(ctx, orgID, clientID)
}
