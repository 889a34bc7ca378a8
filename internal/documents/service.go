// Package documents renders official certificate PDFs for completed
// requests. HTML is rendered from an embedded template, converted through
// Gotenberg and stored in object storage; the request row then points at
// the stored file.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"

	communesrepo "civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/events"
	requestsrepo "civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/storage"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"
)

// RequestStore is the slice of the requests repository the pipeline needs.
type RequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (requestsrepo.Request, error)
	SetDocumentURL(ctx context.Context, id uuid.UUID, fileKey string) error
}

// CommuneStore resolves the issuing commune for the certificate header.
type CommuneStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (communesrepo.Commune, error)
}

// Service generates certificate PDFs for completed requests.
type Service struct {
	requests RequestStore
	communes CommuneStore
	renderer Renderer
	store    storage.StorageService
	bucket   string
	cfg      config.NotificationConfig
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the certificate generation pipeline.
func NewService(
	requests RequestStore,
	communes CommuneStore,
	renderer Renderer,
	store storage.StorageService,
	bucket string,
	cfg config.NotificationConfig,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		requests: requests,
		communes: communes,
		renderer: renderer,
		store:    store,
		bucket:   bucket,
		cfg:      cfg,
		bus:      bus,
		log:      log,
	}
}

// Generate renders, converts and stores the certificate for a completed
// request. Requests that are not completed, or that already have a
// generated document, are skipped without error so redelivered events
// stay harmless.
func (s *Service) Generate(ctx context.Context, requestID uuid.UUID) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if req.Status != "completed" {
		s.log.Debug("skipping certificate generation for non-completed request",
			"requestId", requestID.String(), "status", req.Status)
		return nil
	}
	if req.DocumentURL != nil && *req.DocumentURL != "" {
		return nil
	}

	commune, err := s.communes.GetByID(ctx, req.CommuneID)
	if err != nil {
		return fmt.Errorf("load commune: %w", err)
	}

	html, err := s.renderHTML(req, commune)
	if err != nil {
		return err
	}

	pdf, err := s.renderer.ConvertHTML(ctx, html)
	if err != nil {
		return fmt.Errorf("convert certificate to pdf: %w", err)
	}

	fileName := fmt.Sprintf("%s-%s.pdf", req.DocumentType, req.ID.String())
	fileKey, err := s.store.UploadFile(ctx, s.bucket, "certificates", fileName,
		"application/pdf", bytes.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		return fmt.Errorf("upload certificate: %w", err)
	}

	if err := s.requests.SetDocumentURL(ctx, req.ID, fileKey); err != nil {
		return fmt.Errorf("record certificate key: %w", err)
	}

	s.bus.Publish(ctx, events.DocumentGenerated{
		BaseEvent:    events.NewBaseEvent(),
		RequestID:    req.ID,
		CitizenID:    req.CitizenID,
		DocumentType: req.DocumentType,
		DocumentURL:  fileKey,
	})

	s.log.Info("certificate generated",
		"requestId", req.ID.String(),
		"documentType", req.DocumentType,
		"fileKey", fileKey)
	return nil
}

func (s *Service) renderHTML(req requestsrepo.Request, commune communesrepo.Commune) ([]byte, error) {
	title, ok := documentTitles[req.DocumentType]
	if !ok {
		return nil, fmt.Errorf("no certificate template for document type %q", req.DocumentType)
	}

	verifyURL := fmt.Sprintf("%s/verify/%s", strings.TrimRight(s.cfg.GetAppBaseURL(), "/"), req.ID.String())
	qr, err := verificationQR(verifyURL)
	if err != nil {
		return nil, err
	}

	return renderCertificate(certificateData{
		Title:          title,
		ReferenceID:    referenceID(req.ID),
		IssueDate:      time.Now().Format("02/01/2006"),
		CommuneName:    commune.Name,
		Region:         commune.Region,
		Department:     commune.Department,
		FullName:       req.FullName,
		BirthDate:      req.BirthDate,
		BirthPlace:     req.BirthPlace,
		FatherName:     req.FatherName,
		MotherName:     req.MotherName,
		Address:        deref(req.Address),
		DeathDate:      deref(req.DeathDate),
		DeathPlace:     deref(req.DeathPlace),
		DeclarantName:  deref(req.DeclarantName),
		QRDataURI:      template.URL(qr),
		VerificationID: req.ID.String(),
	})
}

// referenceID derives the short human-readable reference printed on the
// certificate from the request id.
func referenceID(id uuid.UUID) string {
	return "REQ-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
