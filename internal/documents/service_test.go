package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	communesrepo "civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/events"
	requestsrepo "civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/storage"
	"civildocs_backend/platform/logger"
)

type fakeRequestStore struct {
	requests map[uuid.UUID]requestsrepo.Request
	setKeys  map[uuid.UUID]string
	setErr   error
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{
		requests: make(map[uuid.UUID]requestsrepo.Request),
		setKeys:  make(map[uuid.UUID]string),
	}
}

func (f *fakeRequestStore) GetByID(_ context.Context, id uuid.UUID) (requestsrepo.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return requestsrepo.Request{}, errors.New("not found")
	}
	return req, nil
}

func (f *fakeRequestStore) SetDocumentURL(_ context.Context, id uuid.UUID, fileKey string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.setKeys[id] = fileKey
	return nil
}

type fakeCommuneStore struct {
	commune communesrepo.Commune
	err     error
}

func (f *fakeCommuneStore) GetByID(_ context.Context, _ uuid.UUID) (communesrepo.Commune, error) {
	return f.commune, f.err
}

type fakeRenderer struct {
	lastHTML []byte
	calls    int
	err      error
}

func (f *fakeRenderer) ConvertHTML(_ context.Context, indexHTML []byte) ([]byte, error) {
	f.calls++
	f.lastHTML = indexHTML
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 fake"), nil
}

type fakeStorage struct {
	uploads   int
	bucket    string
	folder    string
	fileName  string
	mimeType  string
	size      int64
	uploadErr error
}

func (f *fakeStorage) UploadFile(_ context.Context, bucket, folder, fileName, contentType string, _ io.Reader, size int64) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads++
	f.bucket = bucket
	f.folder = folder
	f.fileName = fileName
	f.mimeType = contentType
	f.size = size
	return folder + "/" + fileName, nil
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, _, _ string) (*storage.PresignedURL, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorage) DownloadFile(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorage) DeleteObject(_ context.Context, _, _ string) error    { return nil }
func (f *fakeStorage) EnsureBucketExists(_ context.Context, _ string) error { return nil }
func (f *fakeStorage) ValidateContentType(_ string) error                   { return nil }
func (f *fakeStorage) ValidateFileSize(_ int64) error                       { return nil }

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

func (b *recordingBus) Subscribe(_ string, _ events.Handler) {}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type fakeAppConfig struct{ base string }

func (f fakeAppConfig) GetAppBaseURL() string { return f.base }

type fixture struct {
	svc      *Service
	requests *fakeRequestStore
	communes *fakeCommuneStore
	renderer *fakeRenderer
	store    *fakeStorage
	bus      *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		requests: newFakeRequestStore(),
		communes: &fakeCommuneStore{commune: communesrepo.Commune{
			ID:         uuid.New(),
			Name:       "Médina",
			Region:     "Dakar",
			Department: "Dakar",
			IsActive:   true,
		}},
		renderer: &fakeRenderer{},
		store:    &fakeStorage{},
		bus:      &recordingBus{},
	}
	f.svc = NewService(f.requests, f.communes, f.renderer, f.store,
		"generated-documents", fakeAppConfig{base: "https://civildocs.example.test"},
		f.bus, logger.New("development"))
	return f
}

func completedRequest() requestsrepo.Request {
	return requestsrepo.Request{
		ID:           uuid.New(),
		CitizenID:    uuid.New(),
		CommuneID:    uuid.New(),
		DocumentType: "birth_certificate",
		Status:       "completed",
		FullName:     "Awa Diop",
		BirthDate:    "1994-03-12",
		BirthPlace:   "Dakar",
		FatherName:   "Moussa Diop",
		MotherName:   "Fatou Ndiaye",
	}
}

func TestGenerate_RendersUploadsAndPublishes(t *testing.T) {
	f := newFixture(t)
	req := completedRequest()
	f.requests.requests[req.ID] = req

	if err := f.svc.Generate(context.Background(), req.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	html := string(f.renderer.lastHTML)
	for _, want := range []string{"Awa Diop", "Extrait d'Acte de Naissance", "Médina", "data:image/png;base64,", req.ID.String()} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}

	if f.store.bucket != "generated-documents" || f.store.folder != "certificates" {
		t.Errorf("uploaded to %s/%s, want generated-documents/certificates", f.store.bucket, f.store.folder)
	}
	if f.store.mimeType != "application/pdf" {
		t.Errorf("content type = %s, want application/pdf", f.store.mimeType)
	}

	key, ok := f.requests.setKeys[req.ID]
	if !ok {
		t.Fatal("document key was not recorded on the request")
	}
	if !strings.HasPrefix(key, "certificates/") || !strings.HasSuffix(key, ".pdf") {
		t.Errorf("unexpected file key %q", key)
	}

	if f.bus.count() != 1 {
		t.Fatalf("published %d events, want 1", f.bus.count())
	}
	generated, ok := f.bus.events[0].(events.DocumentGenerated)
	if !ok {
		t.Fatalf("published %T, want DocumentGenerated", f.bus.events[0])
	}
	if generated.RequestID != req.ID || generated.CitizenID != req.CitizenID {
		t.Error("event carries wrong request or citizen id")
	}
	if generated.DocumentURL != key {
		t.Errorf("event document url = %s, want %s", generated.DocumentURL, key)
	}
}

func TestGenerate_SkipsNonCompletedRequest(t *testing.T) {
	f := newFixture(t)
	req := completedRequest()
	req.Status = "processing"
	f.requests.requests[req.ID] = req

	if err := f.svc.Generate(context.Background(), req.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.renderer.calls != 0 {
		t.Error("renderer was called for a non-completed request")
	}
	if f.bus.count() != 0 {
		t.Error("event published for a non-completed request")
	}
}

func TestGenerate_SkipsAlreadyGenerated(t *testing.T) {
	f := newFixture(t)
	req := completedRequest()
	existing := "certificates/already-there.pdf"
	req.DocumentURL = &existing
	f.requests.requests[req.ID] = req

	if err := f.svc.Generate(context.Background(), req.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.renderer.calls != 0 || f.store.uploads != 0 || f.bus.count() != 0 {
		t.Error("redelivered completion regenerated an existing certificate")
	}
}

func TestGenerate_UploadFailureLeavesRequestUntouched(t *testing.T) {
	f := newFixture(t)
	req := completedRequest()
	f.requests.requests[req.ID] = req
	f.store.uploadErr = errors.New("minio unavailable")

	if err := f.svc.Generate(context.Background(), req.ID); err == nil {
		t.Fatal("expected an error when the upload fails")
	}
	if _, ok := f.requests.setKeys[req.ID]; ok {
		t.Error("document key recorded despite failed upload")
	}
	if f.bus.count() != 0 {
		t.Error("event published despite failed upload")
	}
}

func TestGenerate_DeathCertificateIncludesDeathFields(t *testing.T) {
	f := newFixture(t)
	req := completedRequest()
	req.DocumentType = "death_certificate"
	deathDate, deathPlace := "2024-01-05", "Saint-Louis"
	declarant := "Cheikh Diop"
	req.DeathDate, req.DeathPlace, req.DeclarantName = &deathDate, &deathPlace, &declarant
	f.requests.requests[req.ID] = req

	if err := f.svc.Generate(context.Background(), req.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	html := string(f.renderer.lastHTML)
	for _, want := range []string{"Extrait d'Acte de Décès", "Saint-Louis", "Cheikh Diop"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestModuleHandle_IgnoresOtherTransitions(t *testing.T) {
	f := newFixture(t)
	req := completedRequest()
	f.requests.requests[req.ID] = req
	mod := NewModule(f.svc, logger.New("development"))

	err := mod.Handle(context.Background(), events.RequestStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		RequestID: req.ID,
		NewStatus: "processing",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f.renderer.calls != 0 {
		t.Error("pipeline triggered for a non-completion transition")
	}

	err = mod.Handle(context.Background(), events.RequestStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		RequestID: req.ID,
		NewStatus: "completed",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f.renderer.calls != 1 {
		t.Error("pipeline did not run on completion")
	}
}
