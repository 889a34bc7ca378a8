package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	authrepo "civildocs_backend/internal/auth/repository"
	"civildocs_backend/internal/email"
	"civildocs_backend/internal/events"
	"civildocs_backend/internal/notification/inapp"
	"civildocs_backend/internal/notification/sse"
	"civildocs_backend/platform/logger"
)

// fakeStore collects created notifications in memory.
type fakeStore struct {
	mu        sync.Mutex
	created   []inapp.CreateParams
	createErr error
}

func (s *fakeStore) Create(_ context.Context, params inapp.CreateParams) (inapp.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return inapp.Notification{}, s.createErr
	}
	s.created = append(s.created, params)
	return inapp.Notification{
		ID:      uuid.New(),
		UserID:  params.UserID,
		Type:    params.Type,
		Title:   params.Title,
		Message: params.Message,
	}, nil
}

func (s *fakeStore) List(context.Context, uuid.UUID, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}
func (s *fakeStore) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }
func (s *fakeStore) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}
func (s *fakeStore) MarkAllRead(context.Context, uuid.UUID) error { return nil }
func (s *fakeStore) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (s *fakeStore) forUser(userID uuid.UUID) []inapp.CreateParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inapp.CreateParams
	for _, p := range s.created {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

// fakeSender records which transactional emails went out.
type fakeSender struct {
	mu        sync.Mutex
	welcome   []string
	completed []email.RequestEmailData
	rejected  []email.RequestEmailData
	ready     []email.RequestEmailData
}

func (s *fakeSender) SendWelcome(_ context.Context, to, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.welcome = append(s.welcome, to)
	return nil
}

func (s *fakeSender) SendRequestCompleted(_ context.Context, _ string, data email.RequestEmailData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, data)
	return nil
}

func (s *fakeSender) SendRequestRejected(_ context.Context, _ string, data email.RequestEmailData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, data)
	return nil
}

func (s *fakeSender) SendDocumentReady(_ context.Context, _ string, data email.RequestEmailData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, data)
	return nil
}

// fakeUsers resolves every id to one citizen account.
type fakeUsers struct {
	err error
}

func (u *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (authrepo.User, error) {
	if u.err != nil {
		return authrepo.User{}, u.err
	}
	return authrepo.User{ID: id, FirstName: "Awa", Email: "awa@example.test"}, nil
}

type fakeNotifConfig struct{}

func (fakeNotifConfig) GetAppBaseURL() string { return "https://civildocs.test" }

func newTestModule(store *fakeStore, sender *fakeSender, users *fakeUsers) *Module {
	log := logger.New("development")
	inappSvc := inapp.NewService(store, log)
	sseSvc := sse.New(log)
	inappSvc.SetSSE(sseSvc)

	return &Module{
		inappSvc: inappSvc,
		sseSvc:   sseSvc,
		sender:   sender,
		users:    users,
		cfg:      fakeNotifConfig{},
		log:      log,
	}
}

func TestHandle_StatusCompletedNotifiesAndEmails(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	m := newTestModule(store, sender, &fakeUsers{})

	citizenID := uuid.New()
	requestID := uuid.New()
	err := m.Handle(context.Background(), events.RequestStatusChanged{
		RequestID:    requestID,
		CitizenID:    citizenID,
		DocumentType: "birth_certificate",
		OldStatus:    "processing",
		NewStatus:    "completed",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	notifs := store.forUser(citizenID)
	if len(notifs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs))
	}
	if notifs[0].RequestID == nil || *notifs[0].RequestID != requestID {
		t.Errorf("notification requestID = %v, want %v", notifs[0].RequestID, requestID)
	}
	if len(sender.completed) != 1 {
		t.Fatalf("completed emails = %d, want 1", len(sender.completed))
	}
	if sender.completed[0].DocumentType != "acte de naissance" {
		t.Errorf("email document type = %q, want the French label", sender.completed[0].DocumentType)
	}
}

func TestHandle_StatusRejectedCarriesReason(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	m := newTestModule(store, sender, &fakeUsers{})

	err := m.Handle(context.Background(), events.RequestStatusChanged{
		RequestID:    uuid.New(),
		CitizenID:    uuid.New(),
		DocumentType: "death_certificate",
		OldStatus:    "pending",
		NewStatus:    "rejected",
		Note:         "illegible supporting document",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(sender.rejected) != 1 {
		t.Fatalf("rejected emails = %d, want 1", len(sender.rejected))
	}
	if sender.rejected[0].Reason != "illegible supporting document" {
		t.Errorf("email reason = %q, want the rejection reason", sender.rejected[0].Reason)
	}
}

func TestHandle_ReassignmentNotifiesBothAgents(t *testing.T) {
	store := &fakeStore{}
	m := newTestModule(store, &fakeSender{}, &fakeUsers{})

	previous := uuid.New()
	next := uuid.New()
	err := m.Handle(context.Background(), events.RequestReassigned{
		RequestID:       uuid.New(),
		PreviousAgentID: previous,
		NewAgentID:      next,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(store.forUser(next)) != 1 {
		t.Errorf("new agent notifications = %d, want 1", len(store.forUser(next)))
	}
	if len(store.forUser(previous)) != 1 {
		t.Errorf("previous agent notifications = %d, want 1", len(store.forUser(previous)))
	}
}

func TestHandle_FailuresNeverPropagate(t *testing.T) {
	store := &fakeStore{createErr: errors.New("connection refused")}
	sender := &fakeSender{}
	users := &fakeUsers{err: errors.New("user lookup down")}
	m := newTestModule(store, sender, users)

	err := m.Handle(context.Background(), events.RequestStatusChanged{
		RequestID: uuid.New(),
		CitizenID: uuid.New(),
		NewStatus: "completed",
	})
	if err != nil {
		t.Fatalf("Handle returned %v, want notification failures swallowed", err)
	}
	if len(sender.completed) != 0 {
		t.Errorf("emails sent = %d, want 0 when user lookup fails", len(sender.completed))
	}
}

func TestHandle_PaymentOutcomeWording(t *testing.T) {
	store := &fakeStore{}
	m := newTestModule(store, &fakeSender{}, &fakeUsers{})

	citizenID := uuid.New()
	if err := m.Handle(context.Background(), events.PaymentStatusChanged{
		RequestID: uuid.New(),
		CitizenID: citizenID,
		Outcome:   "failed",
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	notifs := store.forUser(citizenID)
	if len(notifs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs))
	}
	if notifs[0].Title != "Paiement échoué" {
		t.Errorf("title = %q, want the failure wording", notifs[0].Title)
	}
}
