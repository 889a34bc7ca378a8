// Package service implements the request lifecycle: submission with frozen
// pricing and automatic agent assignment, status transitions, notes,
// statistics and document access.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"civildocs_backend/internal/assignment"
	communesrepo "civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/events"
	"civildocs_backend/internal/requests/domain"
	"civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/requests/transport"
	"civildocs_backend/internal/storage"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/httpkit"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/phone"
)

// Actor identifies who is performing an operation. Handlers build it from
// the authenticated identity so the service stays framework-free.
type Actor struct {
	UserID    uuid.UUID
	Role      httpkit.Role
	CommuneID uuid.UUID
}

// Assigner selects and reserves agents for requests.
type Assigner interface {
	AssignRequest(ctx context.Context, communeID uuid.UUID) (uuid.UUID, error)
	ReassignRequest(ctx context.Context, communeID, current uuid.UUID) (uuid.UUID, error)
}

// CommuneDirectory provides the commune lookups and counters the request
// lifecycle needs. Implemented by the communes repository.
type CommuneDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (communesrepo.Commune, error)
	IncrementRequestCounters(ctx context.Context, id uuid.UUID) error
	MarkRequestCompleted(ctx context.Context, id uuid.UUID) error
	MarkRequestClosed(ctx context.Context, id uuid.UUID) error
}

// Service provides request lifecycle business logic.
type Service struct {
	repo     repository.Repository
	assigner Assigner
	communes CommuneDirectory
	bus      events.Bus
	log      *logger.Logger

	// Storage is optional; identity document upload returns an error
	// when it is absent.
	store          storage.StorageService
	identityBucket string
	documentBucket string
}

// New creates a new requests service.
func New(repo repository.Repository, assigner Assigner, communes CommuneDirectory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		assigner: assigner,
		communes: communes,
		bus:      bus,
		log:      log,
	}
}

// SetStorage wires the object store used for identity documents and
// generated certificates.
func (s *Service) SetStorage(store storage.StorageService, identityBucket, documentBucket string) {
	s.store = store
	s.identityBucket = identityBucket
	s.documentBucket = documentBucket
}

// Repository exposes the repository for sibling modules (documents,
// payments) that persist onto the same rows.
func (s *Service) Repository() repository.Repository {
	return s.repo
}

// Create submits a new document request. The price breakdown is computed
// here and frozen; later price table changes never affect existing rows.
// Assignment failures (no agents, all saturated) do not fail submission:
// the request is created unassigned for later manual or automatic pickup.
func (s *Service) Create(ctx context.Context, citizenID uuid.UUID, req transport.CreateRequestRequest) (transport.RequestResponse, error) {
	docType, ok := domain.ParseDocumentType(req.DocumentType)
	if !ok {
		return transport.RequestResponse{}, apperr.Validation("unknown document type")
	}
	method, ok := domain.ParseDeliveryMethod(req.DeliveryMethod)
	if !ok {
		return transport.RequestResponse{}, apperr.Validation("unknown delivery method")
	}
	if err := validateTypeFields(docType, req); err != nil {
		return transport.RequestResponse{}, err
	}

	communeID, err := uuid.Parse(req.CommuneID)
	if err != nil {
		return transport.RequestResponse{}, apperr.Validation("invalid commune ID")
	}
	commune, err := s.communes.GetByID(ctx, communeID)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if !commune.IsActive {
		return transport.RequestResponse{}, apperr.Validation("commune is not accepting requests")
	}

	quote := domain.PriceRequest(docType, method)

	params := repository.CreateParams{
		CitizenID:         citizenID,
		CommuneID:         communeID,
		DocumentType:      string(docType),
		FullName:          req.FullName,
		BirthDate:         req.BirthDate,
		BirthPlace:        req.BirthPlace,
		FatherName:        req.FatherName,
		MotherName:        req.MotherName,
		PhoneNumber:       phone.NormalizeE164(req.PhoneNumber),
		Address:           req.Address,
		DeathDate:         req.DeathDate,
		DeathPlace:        req.DeathPlace,
		DeathCause:        req.DeathCause,
		DeclarantName:     req.DeclarantName,
		DeclarantRelation: req.DeclarantRelation,
		DeliveryMethod:    string(method),
		DocumentPrice:     quote.DocumentPrice,
		DeliveryFee:       quote.DeliveryFee,
		TotalPrice:        quote.TotalPrice,
	}

	// Reserve an agent slot before the insert so the row is born assigned
	// in the common case.
	agentID, assignErr := s.assigner.AssignRequest(ctx, communeID)
	if assignErr == nil {
		params.AgentID = &agentID
	} else if errors.Is(assignErr, assignment.ErrNoAgent) || errors.Is(assignErr, assignment.ErrQuotaExhausted) {
		s.log.Warn("request created unassigned", "communeId", communeID, "reason", assignErr.Error())
	} else {
		return transport.RequestResponse{}, assignErr
	}

	created, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	if err := s.communes.IncrementRequestCounters(ctx, communeID); err != nil {
		// Counters are display aggregates; the request itself is committed.
		s.log.DatabaseError("increment commune counters", err)
	}

	s.log.Info("request created", "id", created.ID, "citizenId", citizenID,
		"documentType", created.DocumentType, "totalPrice", created.TotalPrice,
		"assigned", created.AgentID != nil)

	s.bus.Publish(ctx, events.RequestCreated{
		BaseEvent:    events.NewBaseEvent(),
		RequestID:    created.ID,
		CitizenID:    created.CitizenID,
		CommuneID:    created.CommuneID,
		AgentID:      created.AgentID,
		DocumentType: created.DocumentType,
		TotalPrice:   created.TotalPrice,
	})
	if created.AgentID != nil {
		s.bus.Publish(ctx, events.RequestAssigned{
			BaseEvent: events.NewBaseEvent(),
			RequestID: created.ID,
			AgentID:   *created.AgentID,
			CommuneID: created.CommuneID,
		})
	}

	return toResponse(created), nil
}

// validateTypeFields enforces per-type required fields: death certificates
// need the death record, declarations need the declarant.
func validateTypeFields(t domain.DocumentType, req transport.CreateRequestRequest) error {
	switch t {
	case domain.DeathCertificate:
		if req.DeathDate == nil || req.DeathPlace == nil {
			return apperr.Validation("death date and place are required for death certificates")
		}
	case domain.BirthDeclaration:
		if req.DeclarantName == nil || req.DeclarantRelation == nil {
			return apperr.Validation("declarant name and relation are required for declarations")
		}
	}
	return nil
}

// Update edits applicant details on the citizen's own request. Only
// pending requests can be edited; once an agent starts processing, the
// record the agent works from is stable. Pricing fields stay frozen.
func (s *Service) Update(ctx context.Context, citizenID uuid.UUID, id uuid.UUID, req transport.UpdateRequestRequest) (transport.RequestResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if current.CitizenID != citizenID {
		return transport.RequestResponse{}, apperr.Forbidden("only the request owner can edit it")
	}
	if current.Status != string(domain.StatusPending) {
		return transport.RequestResponse{}, apperr.Conflict("only pending requests can be edited")
	}

	params := repository.UpdateDetailsParams{
		ID:                id,
		Version:           current.Version,
		FullName:          req.FullName,
		BirthDate:         req.BirthDate,
		BirthPlace:        req.BirthPlace,
		FatherName:        req.FatherName,
		MotherName:        req.MotherName,
		Address:           req.Address,
		DeathDate:         req.DeathDate,
		DeathPlace:        req.DeathPlace,
		DeathCause:        req.DeathCause,
		DeclarantName:     req.DeclarantName,
		DeclarantRelation: req.DeclarantRelation,
	}
	if req.PhoneNumber != nil {
		normalized := phone.NormalizeE164(*req.PhoneNumber)
		params.PhoneNumber = &normalized
	}

	updated, err := s.repo.UpdateDetails(ctx, params)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	s.log.Info("request details updated", "id", id, "citizenId", citizenID)
	return toResponse(updated), nil
}

// Delete removes a request. Owners and admins only, and never while an
// agent is processing it. Deleting a still-pending request releases the
// commune's pending counter.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdmin() && current.CitizenID != actor.UserID {
		return apperr.Forbidden("only the request owner or an admin can delete it")
	}
	if current.Status == string(domain.StatusProcessing) {
		return apperr.Conflict("a request being processed cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if current.Status == string(domain.StatusPending) {
		if err := s.communes.MarkRequestClosed(ctx, current.CommuneID); err != nil {
			s.log.DatabaseError("release commune pending counter", err)
		}
	}

	s.log.Info("request deleted", "id", id, "actorId", actor.UserID, "status", current.Status)
	return nil
}

// Get retrieves a single request, enforcing visibility: citizens see their
// own, agents see requests assigned to them, admins see everything.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (transport.RequestResponse, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if err := canView(actor, req); err != nil {
		return transport.RequestResponse{}, err
	}
	return toResponse(req), nil
}

// ListMine retrieves the citizen's own requests.
func (s *Service) ListMine(ctx context.Context, citizenID uuid.UUID, query transport.ListRequestsQuery) (transport.RequestListResponse, error) {
	params, err := toListParams(query)
	if err != nil {
		return transport.RequestListResponse{}, err
	}
	items, total, err := s.repo.ListByCitizen(ctx, citizenID, params)
	if err != nil {
		return transport.RequestListResponse{}, err
	}
	return toListResponse(items, total, params), nil
}

// ListAssigned retrieves requests assigned to the agent.
func (s *Service) ListAssigned(ctx context.Context, agentID uuid.UUID, query transport.ListRequestsQuery) (transport.RequestListResponse, error) {
	params, err := toListParams(query)
	if err != nil {
		return transport.RequestListResponse{}, err
	}
	items, total, err := s.repo.ListByAgent(ctx, agentID, params)
	if err != nil {
		return transport.RequestListResponse{}, err
	}
	return toListResponse(items, total, params), nil
}

// ListAll retrieves requests across the platform (admin).
func (s *Service) ListAll(ctx context.Context, query transport.ListRequestsQuery) (transport.RequestListResponse, error) {
	params, err := toListParams(query)
	if err != nil {
		return transport.RequestListResponse{}, err
	}
	items, total, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return transport.RequestListResponse{}, err
	}
	return toListResponse(items, total, params), nil
}

// StatsForCitizen aggregates the citizen's requests per status.
func (s *Service) StatsForCitizen(ctx context.Context, citizenID uuid.UUID) (repository.StatusCounts, error) {
	return s.repo.StatsForCitizen(ctx, citizenID)
}

// StatsForAgent aggregates the agent's assigned requests per status.
func (s *Service) StatsForAgent(ctx context.Context, agentID uuid.UUID) (repository.StatusCounts, error) {
	return s.repo.StatsForAgent(ctx, agentID)
}

// StatsGlobal aggregates platform-wide requests, optionally per commune.
func (s *Service) StatsGlobal(ctx context.Context, communeID *uuid.UUID) (repository.StatusCounts, error) {
	return s.repo.StatsGlobal(ctx, communeID)
}

// canView enforces read visibility on one request.
func canView(actor Actor, req repository.Request) error {
	switch {
	case actor.Role.IsAdmin():
		return nil
	case actor.Role == httpkit.RoleAgent:
		if req.AgentID != nil && *req.AgentID == actor.UserID {
			return nil
		}
		// Agents may inspect unassigned requests of their own commune.
		if req.AgentID == nil && req.CommuneID == actor.CommuneID {
			return nil
		}
	default:
		if req.CitizenID == actor.UserID {
			return nil
		}
	}
	return apperr.Forbidden("not allowed to view this request")
}

func toListParams(query transport.ListRequestsQuery) (repository.ListParams, error) {
	params := repository.ListParams{Page: query.Page, PageSize: query.PageSize}

	if query.Status != "" {
		st, ok := domain.ParseStatus(query.Status)
		if !ok {
			return repository.ListParams{}, apperr.Validation("unknown status filter")
		}
		v := string(st)
		params.Status = &v
	}
	if query.DocumentType != "" {
		dt, ok := domain.ParseDocumentType(query.DocumentType)
		if !ok {
			return repository.ListParams{}, apperr.Validation("unknown document type filter")
		}
		v := string(dt)
		params.DocumentType = &v
	}
	if query.CommuneID != "" {
		id, err := uuid.Parse(query.CommuneID)
		if err != nil {
			return repository.ListParams{}, apperr.Validation("invalid commune ID filter")
		}
		params.CommuneID = &id
	}
	return params, nil
}

func toResponse(req repository.Request) transport.RequestResponse {
	return transport.RequestResponse{
		ID:                   req.ID,
		CitizenID:            req.CitizenID,
		AgentID:              req.AgentID,
		CommuneID:            req.CommuneID,
		DocumentType:         req.DocumentType,
		Status:               req.Status,
		FullName:             req.FullName,
		BirthDate:            req.BirthDate,
		BirthPlace:           req.BirthPlace,
		FatherName:           req.FatherName,
		MotherName:           req.MotherName,
		PhoneNumber:          req.PhoneNumber,
		Address:              req.Address,
		DeathDate:            req.DeathDate,
		DeathPlace:           req.DeathPlace,
		DeathCause:           req.DeathCause,
		DeclarantName:        req.DeclarantName,
		DeclarantRelation:    req.DeclarantRelation,
		DeliveryMethod:       req.DeliveryMethod,
		DocumentPrice:        req.DocumentPrice,
		DeliveryFee:          req.DeliveryFee,
		TotalPrice:           req.TotalPrice,
		PaymentStatus:        req.PaymentStatus,
		PaymentState:         req.PaymentState,
		PaymentAmount:        req.PaymentAmount,
		PaymentMethod:        req.PaymentMethod,
		PaymentDate:          req.PaymentDate,
		PaymentTransactionID: req.PaymentTransactionID,
		IdentityDocumentURL:  req.IdentityDocumentURL,
		DocumentURL:          req.DocumentURL,
		SubmittedAt:          req.SubmittedAt,
		ProcessedAt:          req.ProcessedAt,
		CompletedAt:          req.CompletedAt,
		RejectedAt:           req.RejectedAt,
		RejectionReason:      req.RejectionReason,
	}
}

func toListResponse(items []repository.Request, total int, params repository.ListParams) transport.RequestListResponse {
	responses := make([]transport.RequestResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := (total + pageSize - 1) / pageSize

	return transport.RequestListResponse{
		Items:      responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
