package service

import (
	"context"

	"github.com/google/uuid"

	"civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/requests/transport"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/httpkit"
)

// AddNote attaches a processing note. Only the assigned agent and admins
// can write notes; citizens can read them on their own requests.
func (s *Service) AddNote(ctx context.Context, actor Actor, requestID uuid.UUID, req transport.AddNoteRequest) (transport.NoteResponse, error) {
	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return transport.NoteResponse{}, err
	}
	if err := canAnnotate(actor, current); err != nil {
		return transport.NoteResponse{}, err
	}

	note, err := s.repo.AddNote(ctx, requestID, actor.UserID, req.Content)
	if err != nil {
		return transport.NoteResponse{}, err
	}

	s.log.Info("request note added", "requestId", requestID, "seq", note.Seq, "authorId", actor.UserID)
	return toNoteResponse(note), nil
}

// ListNotes retrieves the notes of one request, oldest first.
func (s *Service) ListNotes(ctx context.Context, actor Actor, requestID uuid.UUID) (transport.NoteListResponse, error) {
	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return transport.NoteListResponse{}, err
	}
	if err := canView(actor, current); err != nil {
		return transport.NoteListResponse{}, err
	}

	notes, err := s.repo.ListNotes(ctx, requestID)
	if err != nil {
		return transport.NoteListResponse{}, err
	}

	responses := make([]transport.NoteResponse, len(notes))
	for i, n := range notes {
		responses[i] = toNoteResponse(n)
	}
	return transport.NoteListResponse{Items: responses}, nil
}

func canAnnotate(actor Actor, req repository.Request) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if actor.Role == httpkit.RoleAgent && req.AgentID != nil && *req.AgentID == actor.UserID {
		return nil
	}
	return apperr.Forbidden("not allowed to annotate this request")
}

func toNoteResponse(n repository.Note) transport.NoteResponse {
	return transport.NoteResponse{
		ID:        n.ID,
		Seq:       n.Seq,
		Content:   n.Content,
		AuthorID:  n.AuthorID,
		CreatedAt: n.CreatedAt,
	}
}
