package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"civildocs_backend/internal/assignment"
	communesrepo "civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/events"
	"civildocs_backend/internal/requests/domain"
	"civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/requests/transport"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/httpkit"
	"civildocs_backend/platform/logger"
)

// fakeRepo is an in-memory request store. UpdateStatus enforces the version
// check the same way the SQL repository does.
type fakeRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]repository.Request
	notes    map[uuid.UUID][]repository.Note

	// failVersionChecks makes the next N version-checked updates report a
	// concurrent modification regardless of the supplied version.
	failVersionChecks int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		requests: make(map[uuid.UUID]repository.Request),
		notes:    make(map[uuid.UUID][]repository.Note),
	}
}

func (r *fakeRepo) put(req repository.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = req
}

func (r *fakeRepo) Create(_ context.Context, params repository.CreateParams) (repository.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := repository.Request{
		ID:             uuid.New(),
		CitizenID:      params.CitizenID,
		AgentID:        params.AgentID,
		CommuneID:      params.CommuneID,
		DocumentType:   params.DocumentType,
		Status:         string(domain.StatusPending),
		FullName:       params.FullName,
		BirthDate:      params.BirthDate,
		BirthPlace:     params.BirthPlace,
		FatherName:     params.FatherName,
		MotherName:     params.MotherName,
		PhoneNumber:    params.PhoneNumber,
		Address:        params.Address,
		DeathDate:      params.DeathDate,
		DeathPlace:     params.DeathPlace,
		DeliveryMethod: params.DeliveryMethod,
		DocumentPrice:  params.DocumentPrice,
		DeliveryFee:    params.DeliveryFee,
		TotalPrice:     params.TotalPrice,
		PaymentStatus:  "pending",
		PaymentState:   "unpaid",
		Version:        1,
	}
	r.requests[req.ID] = req
	return req, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return repository.Request{}, apperr.NotFound("request not found")
	}
	return req, nil
}

func (r *fakeRepo) UpdateDetails(_ context.Context, params repository.UpdateDetailsParams) (repository.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[params.ID]
	if !ok {
		return repository.Request{}, apperr.NotFound("request not found")
	}
	if r.failVersionChecks > 0 {
		r.failVersionChecks--
		return repository.Request{}, apperr.Conflict("request was modified concurrently")
	}
	if req.Version != params.Version {
		return repository.Request{}, apperr.Conflict("request was modified concurrently")
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setOpt := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	setStr(&req.FullName, params.FullName)
	setStr(&req.BirthDate, params.BirthDate)
	setStr(&req.BirthPlace, params.BirthPlace)
	setStr(&req.FatherName, params.FatherName)
	setStr(&req.MotherName, params.MotherName)
	setStr(&req.PhoneNumber, params.PhoneNumber)
	setOpt(&req.Address, params.Address)
	setOpt(&req.DeathDate, params.DeathDate)
	setOpt(&req.DeathPlace, params.DeathPlace)
	setOpt(&req.DeathCause, params.DeathCause)
	setOpt(&req.DeclarantName, params.DeclarantName)
	setOpt(&req.DeclarantRelation, params.DeclarantRelation)
	req.Version++
	r.requests[params.ID] = req
	return req, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, params repository.UpdateStatusParams) (repository.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[params.ID]
	if !ok {
		return repository.Request{}, apperr.NotFound("request not found")
	}
	if r.failVersionChecks > 0 {
		r.failVersionChecks--
		return repository.Request{}, apperr.Conflict("request was modified concurrently")
	}
	if req.Version != params.Version {
		return repository.Request{}, apperr.Conflict("request was modified concurrently")
	}
	req.Status = params.NewStatus
	req.RejectionReason = params.RejectionReason
	req.Version++
	r.requests[params.ID] = req
	return req, nil
}

func (r *fakeRepo) AssignAgent(_ context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return repository.Request{}, apperr.NotFound("request not found")
	}
	req.AgentID = &agentID
	req.Version++
	r.requests[id] = req
	return req, nil
}

func (r *fakeRepo) SetIdentityDocument(_ context.Context, id uuid.UUID, fileKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.requests[id]
	req.IdentityDocumentURL = &fileKey
	r.requests[id] = req
	return nil
}

func (r *fakeRepo) SetDocumentURL(_ context.Context, id uuid.UUID, fileKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.requests[id]
	req.DocumentURL = &fileKey
	r.requests[id] = req
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return apperr.NotFound("request not found")
	}
	delete(r.requests, id)
	return nil
}

func (r *fakeRepo) ListByCitizen(_ context.Context, citizenID uuid.UUID, _ repository.ListParams) ([]repository.Request, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Request
	for _, req := range r.requests {
		if req.CitizenID == citizenID {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

func (r *fakeRepo) ListByAgent(_ context.Context, agentID uuid.UUID, _ repository.ListParams) ([]repository.Request, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Request
	for _, req := range r.requests {
		if req.AgentID != nil && *req.AgentID == agentID {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

func (r *fakeRepo) ListAll(_ context.Context, _ repository.ListParams) ([]repository.Request, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Request
	for _, req := range r.requests {
		out = append(out, req)
	}
	return out, len(out), nil
}

func (r *fakeRepo) StatsForCitizen(context.Context, uuid.UUID) (repository.StatusCounts, error) {
	return repository.StatusCounts{}, nil
}

func (r *fakeRepo) StatsForAgent(context.Context, uuid.UUID) (repository.StatusCounts, error) {
	return repository.StatusCounts{}, nil
}

func (r *fakeRepo) StatsGlobal(context.Context, *uuid.UUID) (repository.StatusCounts, error) {
	return repository.StatusCounts{}, nil
}

func (r *fakeRepo) AddNote(_ context.Context, requestID, authorID uuid.UUID, content string) (repository.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	note := repository.Note{
		ID:        uuid.New(),
		RequestID: requestID,
		Seq:       len(r.notes[requestID]) + 1,
		Content:   content,
		AuthorID:  authorID,
	}
	r.notes[requestID] = append(r.notes[requestID], note)
	return note, nil
}

func (r *fakeRepo) ListNotes(_ context.Context, requestID uuid.UUID) ([]repository.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes[requestID], nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// fakeAssigner returns a fixed agent, or the configured error.
type fakeAssigner struct {
	agentID   uuid.UUID
	err       error
	assigns   int
	reassigns int
}

func (a *fakeAssigner) AssignRequest(context.Context, uuid.UUID) (uuid.UUID, error) {
	a.assigns++
	if a.err != nil {
		return uuid.Nil, a.err
	}
	return a.agentID, nil
}

func (a *fakeAssigner) ReassignRequest(context.Context, uuid.UUID, uuid.UUID) (uuid.UUID, error) {
	a.reassigns++
	if a.err != nil {
		return uuid.Nil, a.err
	}
	return a.agentID, nil
}

// fakeCommunes serves one commune and records counter calls.
type fakeCommunes struct {
	commune    communesrepo.Commune
	increments int
	completed  int
	closed     int
}

func (c *fakeCommunes) GetByID(_ context.Context, id uuid.UUID) (communesrepo.Commune, error) {
	if id != c.commune.ID {
		return communesrepo.Commune{}, apperr.NotFound("commune not found")
	}
	return c.commune, nil
}

func (c *fakeCommunes) IncrementRequestCounters(context.Context, uuid.UUID) error {
	c.increments++
	return nil
}

func (c *fakeCommunes) MarkRequestCompleted(context.Context, uuid.UUID) error {
	c.completed++
	return nil
}

func (c *fakeCommunes) MarkRequestClosed(context.Context, uuid.UUID) error {
	c.closed++
	return nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

func (b *recordingBus) count(name string) int {
	n := 0
	for _, got := range b.names() {
		if got == name {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	assigner *fakeAssigner
	communes *fakeCommunes
	bus      *recordingBus

	communeID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	assigner := &fakeAssigner{agentID: uuid.New()}
	communeID := uuid.New()
	communes := &fakeCommunes{commune: communesrepo.Commune{
		ID:       communeID,
		Name:     "Plateau",
		IsActive: true,
	}}
	bus := &recordingBus{}
	svc := New(repo, assigner, communes, bus, logger.New("development"))
	return &fixture{svc: svc, repo: repo, assigner: assigner, communes: communes, bus: bus, communeID: communeID}
}

func validCreateRequest(communeID uuid.UUID) transport.CreateRequestRequest {
	return transport.CreateRequestRequest{
		CommuneID:      communeID.String(),
		DocumentType:   "birth_certificate",
		DeliveryMethod: "delivery",
		FullName:       "Awa Diop",
		BirthDate:      "1994-03-12",
		BirthPlace:     "Dakar",
		FatherName:     "Moussa Diop",
		MotherName:     "Fatou Ndiaye",
		PhoneNumber:    "+221771234567",
	}
}

func TestCreate_FreezesPriceAndAssigns(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if resp.DocumentPrice != 2000 || resp.DeliveryFee != 2000 || resp.TotalPrice != 4000 {
		t.Errorf("price breakdown = %d+%d=%d, want 2000+2000=4000",
			resp.DocumentPrice, resp.DeliveryFee, resp.TotalPrice)
	}
	if resp.Status != "pending" {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.AgentID == nil || *resp.AgentID != f.assigner.agentID {
		t.Errorf("agentID = %v, want %v", resp.AgentID, f.assigner.agentID)
	}
	if f.communes.increments != 1 {
		t.Errorf("commune counter increments = %d, want 1", f.communes.increments)
	}
	if got := f.bus.count("requests.created"); got != 1 {
		t.Errorf("requests.created events = %d, want 1", got)
	}
	if got := f.bus.count("requests.assigned"); got != 1 {
		t.Errorf("requests.assigned events = %d, want 1", got)
	}
}

func TestCreate_SurvivesAssignmentFailure(t *testing.T) {
	f := newFixture(t)
	f.assigner.err = assignment.ErrQuotaExhausted

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create with exhausted agents: %v", err)
	}
	if resp.AgentID != nil {
		t.Errorf("agentID = %v, want unassigned", resp.AgentID)
	}
	if got := f.bus.count("requests.assigned"); got != 0 {
		t.Errorf("requests.assigned events = %d, want 0 for unassigned request", got)
	}
	if got := f.bus.count("requests.created"); got != 1 {
		t.Errorf("requests.created events = %d, want 1", got)
	}
}

func TestCreate_RejectsInactiveCommune(t *testing.T) {
	f := newFixture(t)
	f.communes.commune.IsActive = false

	_, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error for inactive commune", err)
	}
}

func TestCreate_RequiresDeathFieldsForDeathCertificate(t *testing.T) {
	f := newFixture(t)
	req := validCreateRequest(f.communeID)
	req.DocumentType = "death_certificate"

	_, err := f.svc.Create(context.Background(), uuid.New(), req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error for missing death record", err)
	}

	deathDate, deathPlace := "2024-01-05", "Thies"
	req.DeathDate = &deathDate
	req.DeathPlace = &deathPlace
	if _, err := f.svc.Create(context.Background(), uuid.New(), req); err != nil {
		t.Fatalf("Create with death record: %v", err)
	}
}

func TestCreate_RejectsUnknownDocumentType(t *testing.T) {
	f := newFixture(t)
	req := validCreateRequest(f.communeID)
	req.DocumentType = "passport"

	_, err := f.svc.Create(context.Background(), uuid.New(), req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error for unknown type", err)
	}
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()
	agentID := uuid.New()
	other := uuid.New()

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), resp.ID)
	stored.AgentID = &agentID
	f.repo.put(stored)

	cases := []struct {
		name    string
		actor   Actor
		allowed bool
	}{
		{"owner", Actor{UserID: citizenID, Role: httpkit.RoleCitizen}, true},
		{"other citizen", Actor{UserID: other, Role: httpkit.RoleCitizen}, false},
		{"assigned agent", Actor{UserID: agentID, Role: httpkit.RoleAgent, CommuneID: f.communeID}, true},
		{"other agent", Actor{UserID: other, Role: httpkit.RoleAgent, CommuneID: f.communeID}, false},
		{"admin", Actor{UserID: other, Role: httpkit.RoleAdmin}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Get(context.Background(), tc.actor, resp.ID)
			if tc.allowed && err != nil {
				t.Errorf("Get: %v, want allowed", err)
			}
			if !tc.allowed && !apperr.Is(err, apperr.KindForbidden) {
				t.Errorf("Get err = %v, want forbidden", err)
			}
		})
	}
}

func TestGet_AgentSeesUnassignedInOwnCommune(t *testing.T) {
	f := newFixture(t)
	f.assigner.err = assignment.ErrNoAgent

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	agent := Actor{UserID: uuid.New(), Role: httpkit.RoleAgent, CommuneID: f.communeID}
	if _, err := f.svc.Get(context.Background(), agent, resp.ID); err != nil {
		t.Errorf("agent viewing unassigned request in own commune: %v", err)
	}

	outsider := Actor{UserID: uuid.New(), Role: httpkit.RoleAgent, CommuneID: uuid.New()}
	if _, err := f.svc.Get(context.Background(), outsider, resp.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("agent of another commune: err = %v, want forbidden", err)
	}
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "processing"})
	if err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	if got.Status != "processing" {
		t.Fatalf("status = %q, want processing", got.Status)
	}

	// Moving backward or landing on the current status is a conflict.
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "pending"}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("processing -> pending: err = %v, want conflict", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "processing"}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("processing -> processing: err = %v, want conflict", err)
	}

	got, err = f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "completed"})
	if err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if f.communes.completed != 1 {
		t.Errorf("commune completed marks = %d, want 1", f.communes.completed)
	}

	// Terminal states accept nothing further.
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "rejected", Reason: strPtr("x")}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("completed -> rejected: err = %v, want conflict", err)
	}
}

func TestUpdateStatus_RejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "rejected"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("reject without reason: err = %v, want validation", err)
	}

	got, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{
		Status: "rejected",
		Reason: strPtr("illegible supporting document"),
	})
	if err != nil {
		t.Fatalf("reject with reason: %v", err)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "illegible supporting document" {
		t.Errorf("rejectionReason = %v, want stored reason", got.RejectionReason)
	}
	if f.communes.closed != 1 {
		t.Errorf("commune closed marks = %d, want 1", f.communes.closed)
	}
}

func TestUpdateStatus_AgentMustBeAssigned(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stranger := Actor{UserID: uuid.New(), Role: httpkit.RoleAgent, CommuneID: f.communeID}
	if _, err := f.svc.UpdateStatus(context.Background(), stranger, resp.ID, transport.UpdateStatusRequest{Status: "processing"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("unassigned agent transition: err = %v, want forbidden", err)
	}

	assigned := Actor{UserID: f.assigner.agentID, Role: httpkit.RoleAgent, CommuneID: f.communeID}
	if _, err := f.svc.UpdateStatus(context.Background(), assigned, resp.ID, transport.UpdateStatusRequest{Status: "processing"}); err != nil {
		t.Fatalf("assigned agent transition: %v", err)
	}
}

func TestUpdateStatus_RetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two lost races, then success on the final attempt.
	f.repo.failVersionChecks = 2
	got, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "processing"})
	if err != nil {
		t.Fatalf("UpdateStatus after transient conflicts: %v", err)
	}
	if got.Status != "processing" {
		t.Errorf("status = %q, want processing", got.Status)
	}
}

func TestUpdateStatus_GivesUpAfterBoundedRetries(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.repo.failVersionChecks = transitionAttempts
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "processing"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict after exhausting retries", err)
	}
}

func TestCancel_PendingOnlyAndOwnerOnly(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), uuid.New(), resp.ID, transport.CancelRequestRequest{Reason: "typo"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("cancel by non-owner: err = %v, want forbidden", err)
	}

	got, err := f.svc.Cancel(context.Background(), citizenID, resp.ID, transport.CancelRequestRequest{Reason: "wrong commune selected"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != "rejected" {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "cancelled by citizen: wrong commune selected" {
		t.Errorf("rejectionReason = %v, want prefixed citizen reason", got.RejectionReason)
	}

	// Once past pending, cancellation is closed off.
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}
	second, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), admin, second.ID, transport.UpdateStatusRequest{Status: "processing"}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), citizenID, second.ID, transport.CancelRequestRequest{Reason: "too slow"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("cancel processing request: err = %v, want conflict", err)
	}
}

func TestUpdate_EditsPendingDetailsAndNormalizesPhone(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := f.svc.Update(context.Background(), citizenID, resp.ID, transport.UpdateRequestRequest{
		FullName:    strPtr("Awa Ndèye Diop"),
		PhoneNumber: strPtr("77 123 45 67"),
		Address:     strPtr("Rue 10, Médina"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.FullName != "Awa Ndèye Diop" {
		t.Errorf("fullName = %q, want edited value", got.FullName)
	}
	if got.PhoneNumber != "+221771234567" {
		t.Errorf("phoneNumber = %q, want normalized E.164", got.PhoneNumber)
	}
	if got.Address == nil || *got.Address != "Rue 10, Médina" {
		t.Errorf("address = %v, want edited value", got.Address)
	}

	// Untouched fields keep their original values.
	if got.BirthPlace != "Dakar" || got.MotherName != "Fatou Ndiaye" {
		t.Errorf("untouched fields changed: birthPlace=%q motherName=%q", got.BirthPlace, got.MotherName)
	}
	if got.TotalPrice != resp.TotalPrice {
		t.Errorf("totalPrice = %d, want frozen %d", got.TotalPrice, resp.TotalPrice)
	}
}

func TestUpdate_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.Update(context.Background(), uuid.New(), resp.ID, transport.UpdateRequestRequest{FullName: strPtr("Mallory")})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("update by non-owner: err = %v, want forbidden", err)
	}
}

func TestUpdate_PendingOnly(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "processing"}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	_, err = f.svc.Update(context.Background(), citizenID, resp.ID, transport.UpdateRequestRequest{FullName: strPtr("Too Late")})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("update after processing started: err = %v, want conflict", err)
	}
}

func TestDelete_OwnerAndAdmin(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stranger := Actor{UserID: uuid.New(), Role: httpkit.RoleCitizen}
	if err := f.svc.Delete(context.Background(), stranger, resp.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("delete by non-owner: err = %v, want forbidden", err)
	}

	owner := Actor{UserID: citizenID, Role: httpkit.RoleCitizen}
	if err := f.svc.Delete(context.Background(), owner, resp.ID); err != nil {
		t.Fatalf("Delete by owner: %v", err)
	}
	if _, err := f.repo.GetByID(context.Background(), resp.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("deleted request still readable: err = %v", err)
	}

	// A pending request releases the commune's pending counter on delete.
	if f.communes.closed != 1 {
		t.Errorf("commune closed marks = %d, want 1", f.communes.closed)
	}

	second, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}
	if err := f.svc.Delete(context.Background(), admin, second.ID); err != nil {
		t.Fatalf("Delete by admin: %v", err)
	}
}

func TestDelete_ProcessingConflicts(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "processing"}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	owner := Actor{UserID: citizenID, Role: httpkit.RoleCitizen}
	if err := f.svc.Delete(context.Background(), owner, resp.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("delete while processing: err = %v, want conflict", err)
	}
}

func TestDelete_ClosedRequestKeepsCounters(t *testing.T) {
	f := newFixture(t)
	citizenID := uuid.New()
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), citizenID, validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "rejected", Reason: strPtr("duplicate")}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	closedBefore := f.communes.closed

	if err := f.svc.Delete(context.Background(), admin, resp.ID); err != nil {
		t.Fatalf("Delete rejected request: %v", err)
	}
	if f.communes.closed != closedBefore {
		t.Errorf("commune closed marks = %d, want unchanged %d", f.communes.closed, closedBefore)
	}
}

func TestReassign_AssignsUnassignedAndSwapsAssigned(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	// Born unassigned, then picked up via reassign.
	f.assigner.err = assignment.ErrNoAgent
	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.assigner.err = nil

	got, err := f.svc.Reassign(context.Background(), admin, resp.ID)
	if err != nil {
		t.Fatalf("Reassign unassigned: %v", err)
	}
	if got.AgentID == nil || *got.AgentID != f.assigner.agentID {
		t.Fatalf("agentID = %v, want %v", got.AgentID, f.assigner.agentID)
	}
	if f.assigner.reassigns != 0 {
		t.Errorf("reassigns = %d, want the plain assignment path for unassigned requests", f.assigner.reassigns)
	}
	if f.bus.count("requests.assigned") != 1 {
		t.Errorf("requests.assigned events = %d, want 1", f.bus.count("requests.assigned"))
	}

	// An assigned request goes through the exclusion-aware path.
	replacement := uuid.New()
	f.assigner.agentID = replacement
	got, err = f.svc.Reassign(context.Background(), admin, resp.ID)
	if err != nil {
		t.Fatalf("Reassign assigned: %v", err)
	}
	if got.AgentID == nil || *got.AgentID != replacement {
		t.Fatalf("agentID = %v, want %v", got.AgentID, replacement)
	}
	if f.assigner.reassigns != 1 {
		t.Errorf("reassigns = %d, want 1", f.assigner.reassigns)
	}
	if f.bus.count("requests.reassigned") != 1 {
		t.Errorf("requests.reassigned events = %d, want 1", f.bus.count("requests.reassigned"))
	}
}

func TestReassign_ClosedRequestConflicts(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), admin, resp.ID, transport.UpdateStatusRequest{Status: "rejected", Reason: strPtr("duplicate")}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if _, err := f.svc.Reassign(context.Background(), admin, resp.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("reassign closed request: err = %v, want conflict", err)
	}
}

func TestReassign_NoAlternateAgent(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.assigner.err = assignment.ErrNoAlternateAgent
	if _, err := f.svc.Reassign(context.Background(), admin, resp.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict when no alternate agent exists", err)
	}
}

func TestAddNote_AssignedAgentAndAdminOnly(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(context.Background(), uuid.New(), validCreateRequest(f.communeID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stranger := Actor{UserID: uuid.New(), Role: httpkit.RoleAgent, CommuneID: f.communeID}
	if _, err := f.svc.AddNote(context.Background(), stranger, resp.ID, transport.AddNoteRequest{Content: "peeking"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("note by unassigned agent: err = %v, want forbidden", err)
	}

	assigned := Actor{UserID: f.assigner.agentID, Role: httpkit.RoleAgent, CommuneID: f.communeID}
	first, err := f.svc.AddNote(context.Background(), assigned, resp.ID, transport.AddNoteRequest{Content: "called the registry office"})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if first.Seq != 1 {
		t.Errorf("seq = %d, want 1", first.Seq)
	}

	admin := Actor{UserID: uuid.New(), Role: httpkit.RoleAdmin}
	second, err := f.svc.AddNote(context.Background(), admin, resp.ID, transport.AddNoteRequest{Content: "escalated"})
	if err != nil {
		t.Fatalf("AddNote by admin: %v", err)
	}
	if second.Seq != 2 {
		t.Errorf("seq = %d, want 2", second.Seq)
	}

	listed, err := f.svc.ListNotes(context.Background(), admin, resp.ID)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(listed.Items) != 2 {
		t.Errorf("notes = %d, want 2", len(listed.Items))
	}
}

func strPtr(s string) *string { return &s }
