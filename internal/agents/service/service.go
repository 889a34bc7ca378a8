package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"civildocs_backend/internal/agents/repository"
	"civildocs_backend/internal/agents/transport"
	"civildocs_backend/internal/auth/password"
	"civildocs_backend/internal/events"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/phone"
)

// CommuneChecker verifies that a commune exists before binding an agent
// to it. Implemented by the communes repository.
type CommuneChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service provides agent directory management.
type Service struct {
	repo     repository.Repository
	communes CommuneChecker
	bus      events.Bus
	log      *logger.Logger
}

// New creates a new agent directory service.
func New(repo repository.Repository, communes CommuneChecker, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, communes: communes, bus: bus, log: log}
}

const defaultMaxDailyRequests = 20

// Create provisions an agent account bound to a commune.
func (s *Service) Create(ctx context.Context, req transport.CreateAgentRequest) (transport.AgentResponse, error) {
	communeID, err := uuid.Parse(req.CommuneID)
	if err != nil {
		return transport.AgentResponse{}, apperr.Validation("invalid commune ID")
	}

	exists, err := s.communes.Exists(ctx, communeID)
	if err != nil {
		return transport.AgentResponse{}, err
	}
	if !exists {
		return transport.AgentResponse{}, apperr.Validation("commune does not exist")
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	params := repository.CreateParams{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		PasswordHash:     hash,
		CommuneID:        communeID,
		MaxDailyRequests: defaultMaxDailyRequests,
	}
	if req.MaxDailyRequests != nil {
		params.MaxDailyRequests = *req.MaxDailyRequests
	}
	if req.PhoneNumber != nil {
		normalized := phone.NormalizeE164(*req.PhoneNumber)
		params.PhoneNumber = &normalized
	}

	a, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.AgentResponse{}, err
	}

	s.log.Info("agent created", "id", a.ID, "communeId", a.CommuneID, "email", a.Email)
	s.bus.Publish(ctx, events.AgentCreated{
		BaseEvent: events.NewBaseEvent(),
		AgentID:   a.ID,
		CommuneID: a.CommuneID,
		Email:     a.Email,
	})

	return toResponse(a), nil
}

// GetByID retrieves an agent by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.AgentResponse, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.AgentResponse{}, err
	}
	return toResponse(a), nil
}

// List retrieves all agents, optionally filtered by commune.
func (s *Service) List(ctx context.Context, communeID *uuid.UUID) (transport.AgentListResponse, error) {
	var items []repository.Agent
	var err error
	if communeID != nil {
		items, err = s.repo.ListByCommune(ctx, *communeID)
	} else {
		items, err = s.repo.List(ctx)
	}
	if err != nil {
		return transport.AgentListResponse{}, err
	}

	responses := make([]transport.AgentResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}
	return transport.AgentListResponse{Items: responses, Total: len(responses)}, nil
}

// Update updates agent fields, including commune and quota size. A quota
// reduction below today's count does not unassign anything; it only stops
// further assignments for the day.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateAgentRequest) (transport.AgentResponse, error) {
	params := repository.UpdateParams{
		ID:               id,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		MaxDailyRequests: req.MaxDailyRequests,
	}
	if req.PhoneNumber != nil {
		normalized := phone.NormalizeE164(*req.PhoneNumber)
		params.PhoneNumber = &normalized
	}
	if req.CommuneID != nil {
		communeID, err := uuid.Parse(*req.CommuneID)
		if err != nil {
			return transport.AgentResponse{}, apperr.Validation("invalid commune ID")
		}
		exists, err := s.communes.Exists(ctx, communeID)
		if err != nil {
			return transport.AgentResponse{}, err
		}
		if !exists {
			return transport.AgentResponse{}, apperr.Validation("commune does not exist")
		}
		params.CommuneID = &communeID
	}

	a, err := s.repo.Update(ctx, params)
	if err != nil {
		return transport.AgentResponse{}, err
	}

	s.log.Info("agent updated", "id", a.ID)
	return toResponse(a), nil
}

// SetActive activates or deactivates an agent.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, isActive bool) (transport.AgentResponse, error) {
	if err := s.repo.SetActive(ctx, id, isActive); err != nil {
		return transport.AgentResponse{}, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.AgentResponse{}, err
	}

	s.log.Info("agent active set", "id", id, "isActive", isActive)
	return toResponse(a), nil
}

// StatsByCommune aggregates quota load for one commune.
func (s *Service) StatsByCommune(ctx context.Context, communeID uuid.UUID) (repository.CommuneAgentStats, error) {
	return s.repo.StatsByCommune(ctx, communeID)
}

// toResponse converts a repository Agent to a transport response. The
// daily count is normalized: a counter last reset before today reads zero.
func toResponse(a repository.Agent) transport.AgentResponse {
	count := a.DailyRequestCount
	if lastReset, err := time.Parse(time.RFC3339, a.LastRequestCountReset); err == nil {
		now := time.Now()
		y1, m1, d1 := lastReset.Date()
		y2, m2, d2 := now.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			count = 0
		}
	}

	return transport.AgentResponse{
		ID:                a.ID,
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		Email:             a.Email,
		PhoneNumber:       a.PhoneNumber,
		CommuneID:         a.CommuneID,
		MaxDailyRequests:  a.MaxDailyRequests,
		DailyRequestCount: count,
		IsActive:          a.IsActive,
		CreatedAt:         a.CreatedAt,
	}
}
