package service

import (
	"context"

	"github.com/google/uuid"

	"civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/communes/transport"
	"civildocs_backend/platform/logger"
)

// Service provides business logic for communes.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new communes service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetByID retrieves a commune by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.CommuneResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CommuneResponse{}, err
	}
	return toResponse(c), nil
}

// List retrieves all communes (admin).
func (s *Service) List(ctx context.Context) (transport.CommuneListResponse, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return transport.CommuneListResponse{}, err
	}
	return toListResponse(items), nil
}

// ListActive retrieves only active communes. This feeds the public
// request form, so it needs no authentication.
func (s *Service) ListActive(ctx context.Context) (transport.CommuneListResponse, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return transport.CommuneListResponse{}, err
	}
	return toListResponse(items), nil
}

// Create creates a new commune.
func (s *Service) Create(ctx context.Context, req transport.CreateCommuneRequest) (transport.CommuneResponse, error) {
	c, err := s.repo.Create(ctx, repository.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Region:      req.Region,
		Department:  req.Department,
	})
	if err != nil {
		return transport.CommuneResponse{}, err
	}

	s.log.Info("commune created", "id", c.ID, "name", c.Name)
	return toResponse(c), nil
}

// Update updates an existing commune.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateCommuneRequest) (transport.CommuneResponse, error) {
	c, err := s.repo.Update(ctx, repository.UpdateParams{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Region:      req.Region,
		Department:  req.Department,
	})
	if err != nil {
		return transport.CommuneResponse{}, err
	}

	s.log.Info("commune updated", "id", c.ID, "name", c.Name)
	return toResponse(c), nil
}

// SetActive activates or deactivates a commune. A deactivated commune no
// longer accepts new requests but keeps its history.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, isActive bool) (transport.CommuneResponse, error) {
	if err := s.repo.SetActive(ctx, id, isActive); err != nil {
		return transport.CommuneResponse{}, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CommuneResponse{}, err
	}

	s.log.Info("commune active set", "id", id, "isActive", isActive)
	return toResponse(c), nil
}

// toResponse converts a repository Commune to transport response.
func toResponse(c repository.Commune) transport.CommuneResponse {
	return transport.CommuneResponse{
		ID:                c.ID,
		Name:              c.Name,
		Description:       c.Description,
		Region:            c.Region,
		Department:        c.Department,
		IsActive:          c.IsActive,
		TotalRequests:     c.TotalRequests,
		CompletedRequests: c.CompletedRequests,
		PendingRequests:   c.PendingRequests,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func toListResponse(items []repository.Commune) transport.CommuneListResponse {
	responses := make([]transport.CommuneResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}
	return transport.CommuneListResponse{Items: responses, Total: len(responses)}
}
