package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"civildocs_backend/internal/assignment"
	"civildocs_backend/internal/events"
	"civildocs_backend/internal/requests/domain"
	"civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/requests/transport"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/httpkit"
)

// transitionAttempts bounds optimistic-lock retries on concurrent updates.
const transitionAttempts = 3

// UpdateStatus applies a lifecycle transition. Agents may only move
// requests assigned to them; admins may move any request. Transitions are
// strictly forward; landing on the current status or moving backward is a
// conflict.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, req transport.UpdateStatusRequest) (transport.RequestResponse, error) {
	newStatus, ok := domain.ParseStatus(req.Status)
	if !ok {
		return transport.RequestResponse{}, apperr.Validation("unknown status")
	}
	if newStatus == domain.StatusRejected && req.Reason == nil {
		return transport.RequestResponse{}, apperr.Validation("a reason is required to reject a request")
	}

	updated, err := s.transition(ctx, actor, id, newStatus, req.Reason, func(current repository.Request) error {
		return canTransitionRequest(actor, current)
	})
	if err != nil {
		return transport.RequestResponse{}, err
	}

	if req.Note != nil {
		if _, err := s.repo.AddNote(ctx, id, actor.UserID, *req.Note); err != nil {
			s.log.DatabaseError("add transition note", err)
		}
	}

	return toResponse(updated), nil
}

// Cancel lets a citizen withdraw their own request while it is still
// pending. A cancellation is recorded as a rejection with the citizen's
// reason so the terminal vocabulary stays closed.
func (s *Service) Cancel(ctx context.Context, citizenID uuid.UUID, id uuid.UUID, req transport.CancelRequestRequest) (transport.RequestResponse, error) {
	reason := "cancelled by citizen: " + req.Reason

	updated, err := s.transition(ctx, Actor{UserID: citizenID, Role: httpkit.RoleCitizen}, id,
		domain.StatusRejected, &reason, func(current repository.Request) error {
			if current.CitizenID != citizenID {
				return apperr.Forbidden("not allowed to cancel this request")
			}
			if current.Status != string(domain.StatusPending) {
				return apperr.Conflict("only pending requests can be cancelled")
			}
			return nil
		})
	if err != nil {
		return transport.RequestResponse{}, err
	}
	return toResponse(updated), nil
}

// transition runs the optimistic-lock loop: read, guard, version-checked
// write. A stale version re-reads and re-guards before retrying, so a
// request that reached a terminal state between attempts fails cleanly.
func (s *Service) transition(ctx context.Context, actor Actor, id uuid.UUID, newStatus domain.Status, reason *string, guard func(repository.Request) error) (repository.Request, error) {
	var lastErr error

	for attempt := 1; attempt <= transitionAttempts; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return repository.Request{}, err
		}
		if err := guard(current); err != nil {
			return repository.Request{}, err
		}

		currentStatus, ok := domain.ParseStatus(current.Status)
		if !ok {
			return repository.Request{}, apperr.Internal("request has unknown status")
		}
		if !currentStatus.CanTransition(newStatus) {
			return repository.Request{}, apperr.Conflict(
				"cannot move request from " + current.Status + " to " + string(newStatus))
		}

		updated, err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
			ID:              id,
			Version:         current.Version,
			NewStatus:       string(newStatus),
			RejectionReason: reason,
		})
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				lastErr = err
				continue
			}
			return repository.Request{}, err
		}

		s.afterTransition(ctx, actor, current, updated, reason)
		return updated, nil
	}

	return repository.Request{}, lastErr
}

// afterTransition emits the status event and keeps commune counters
// in step with terminal states.
func (s *Service) afterTransition(ctx context.Context, actor Actor, before, after repository.Request, reason *string) {
	s.log.Info("request status changed", "id", after.ID,
		"from", before.Status, "to", after.Status, "actorId", actor.UserID)

	note := ""
	if reason != nil {
		note = *reason
	}
	s.bus.Publish(ctx, events.RequestStatusChanged{
		BaseEvent:    events.NewBaseEvent(),
		RequestID:    after.ID,
		CitizenID:    after.CitizenID,
		CommuneID:    after.CommuneID,
		ActorID:      actor.UserID,
		DocumentType: after.DocumentType,
		OldStatus:    before.Status,
		NewStatus:    after.Status,
		Note:         note,
	})

	switch after.Status {
	case string(domain.StatusCompleted):
		if err := s.communes.MarkRequestCompleted(ctx, after.CommuneID); err != nil {
			s.log.DatabaseError("mark commune request completed", err)
		}
	case string(domain.StatusRejected):
		if err := s.communes.MarkRequestClosed(ctx, after.CommuneID); err != nil {
			s.log.DatabaseError("mark commune request closed", err)
		}
	}
}

// Reassign moves a request to a different agent, or assigns an agent to a
// request created unassigned. Admin only; the previous agent's daily count
// is left untouched.
func (s *Service) Reassign(ctx context.Context, actor Actor, id uuid.UUID) (transport.RequestResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	currentStatus, _ := domain.ParseStatus(current.Status)
	if currentStatus.IsTerminal() {
		return transport.RequestResponse{}, apperr.Conflict("cannot reassign a closed request")
	}

	var newAgentID uuid.UUID
	var assignErr error
	if current.AgentID != nil {
		newAgentID, assignErr = s.assigner.ReassignRequest(ctx, current.CommuneID, *current.AgentID)
	} else {
		newAgentID, assignErr = s.assigner.AssignRequest(ctx, current.CommuneID)
	}
	if assignErr != nil {
		switch {
		case errors.Is(assignErr, assignment.ErrNoAlternateAgent):
			return transport.RequestResponse{}, apperr.Conflict("no alternate agent available")
		case errors.Is(assignErr, assignment.ErrNoAgent):
			return transport.RequestResponse{}, apperr.Conflict("commune has no active agents")
		case errors.Is(assignErr, assignment.ErrQuotaExhausted):
			return transport.RequestResponse{}, apperr.Conflict("all agents have exhausted their daily quota")
		}
		return transport.RequestResponse{}, assignErr
	}

	updated, err := s.repo.AssignAgent(ctx, id, newAgentID)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	s.log.Info("request reassigned", "id", id, "newAgentId", newAgentID, "actorId", actor.UserID)

	if current.AgentID != nil {
		s.bus.Publish(ctx, events.RequestReassigned{
			BaseEvent:       events.NewBaseEvent(),
			RequestID:       updated.ID,
			PreviousAgentID: *current.AgentID,
			NewAgentID:      newAgentID,
			CommuneID:       updated.CommuneID,
		})
	} else {
		s.bus.Publish(ctx, events.RequestAssigned{
			BaseEvent: events.NewBaseEvent(),
			RequestID: updated.ID,
			AgentID:   newAgentID,
			CommuneID: updated.CommuneID,
		})
	}

	return toResponse(updated), nil
}

// canTransitionRequest enforces who may move a request through its
// lifecycle.
func canTransitionRequest(actor Actor, req repository.Request) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if actor.Role == httpkit.RoleAgent && req.AgentID != nil && *req.AgentID == actor.UserID {
		return nil
	}
	return apperr.Forbidden("not allowed to update this request")
}
