package inapp

import (
	"context"

	"github.com/google/uuid"

	"civildocs_backend/internal/notification/sse"
	"civildocs_backend/platform/logger"
)

// Store is the persistence the in-app service needs. Satisfied by
// Repository; narrowed for tests.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Service persists notifications and mirrors them onto open SSE streams.
type Service struct {
	store Store
	sse   *sse.Service
	log   *logger.Logger
}

// NewService creates a new in-app notification service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// SetSSE injects the SSE service.
func (s *Service) SetSSE(sseSvc *sse.Service) {
	s.sse = sseSvc
}

// Send persists the notification and pushes it via SSE if the user is
// online.
func (s *Service) Send(ctx context.Context, params CreateParams) error {
	if params.Type == "" {
		params.Type = "info"
	}

	notif, err := s.store.Create(ctx, params)
	if err != nil {
		return err
	}

	if s.sse != nil {
		s.sse.Publish(params.UserID, sse.Event{
			Type:    sse.EventInAppNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}
	return nil
}

// List retrieves a page of the user's notifications.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.store.List(ctx, userID, pageSize, (page-1)*pageSize)
}

// CountUnread counts the user's unread notifications.
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}

// MarkAllRead flags all of the user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkAllRead(ctx, userID)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id)
}
