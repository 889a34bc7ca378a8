// Package notification turns domain events into user-facing side effects:
// durable in-app notifications, SSE pushes and transactional emails. It
// subscribes to the event bus so domain modules never talk to templates or
// SMTP directly. Everything here is best-effort; a failed notification is
// logged and never propagates back into the transition that caused it.
package notification

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	authrepo "civildocs_backend/internal/auth/repository"
	"civildocs_backend/internal/email"
	"civildocs_backend/internal/events"
	apphttp "civildocs_backend/internal/http"
	notifhandler "civildocs_backend/internal/notification/handler"
	"civildocs_backend/internal/notification/inapp"
	"civildocs_backend/internal/notification/sse"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/httpkit"
	"civildocs_backend/platform/logger"
)

// UserDirectory resolves recipients. Satisfied by the auth repository.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (authrepo.User, error)
}

// Module is the notification bounded context module implementing
// http.Module and events.Handler.
type Module struct {
	inappSvc *inapp.Service
	sseSvc   *sse.Service
	handler  *notifhandler.Handler
	sender   email.Sender
	users    UserDirectory
	cfg      config.NotificationConfig
	log      *logger.Logger
}

// NewModule creates and initializes the notification module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.NotificationConfig, sender email.Sender, users UserDirectory, log *logger.Logger) *Module {
	repo := inapp.NewRepository(pool)
	inappSvc := inapp.NewService(repo, log)
	sseSvc := sse.New(log)
	inappSvc.SetSSE(sseSvc)

	return &Module{
		inappSvc: inappSvc,
		sseSvc:   sseSvc,
		handler:  notifhandler.New(inappSvc),
		sender:   sender,
		users:    users,
		cfg:      cfg,
		log:      log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// InApp returns the in-app notification service for external use.
func (m *Module) InApp() *inapp.Service { return m.inappSvc }

// SSE returns the realtime push service.
func (m *Module) SSE() *sse.Service { return m.sseSvc }

// Close shuts down the realtime streams.
func (m *Module) Close() { m.sseSvc.Close() }

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	group.GET("", m.handler.List)
	group.GET("/unread-count", m.handler.UnreadCount)
	group.PATCH("/:id/read", m.handler.MarkRead)
	group.POST("/read-all", m.handler.MarkAllRead)
	group.DELETE("/:id", m.handler.Delete)

	// EventSource cannot set headers, so the stream route accepts the
	// token query parameter handled by the auth middleware.
	group.GET("/stream", m.sseSvc.Handler(
		func(c *gin.Context) (uuid.UUID, bool) {
			identity := httpkit.GetIdentity(c)
			if !identity.IsAuthenticated() {
				return uuid.Nil, false
			}
			return identity.UserID(), true
		},
		func(c *gin.Context) (uuid.UUID, bool) {
			identity := httpkit.GetIdentity(c)
			return identity.CommuneID(), identity.CommuneID() != uuid.Nil
		},
	))
}

// RegisterHandlers subscribes the module to every event it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.UserRegistered{}.EventName(), m)
	bus.Subscribe(events.RequestCreated{}.EventName(), m)
	bus.Subscribe(events.RequestAssigned{}.EventName(), m)
	bus.Subscribe(events.RequestReassigned{}.EventName(), m)
	bus.Subscribe(events.RequestStatusChanged{}.EventName(), m)
	bus.Subscribe(events.PaymentStatusChanged{}.EventName(), m)
	bus.Subscribe(events.DocumentGenerated{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method. Errors are
// already logged per recipient; the bus never retries.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.UserRegistered:
		m.onUserRegistered(ctx, e)
	case events.RequestCreated:
		m.onRequestCreated(ctx, e)
	case events.RequestAssigned:
		m.onRequestAssigned(ctx, e)
	case events.RequestReassigned:
		m.onRequestReassigned(ctx, e)
	case events.RequestStatusChanged:
		m.onStatusChanged(ctx, e)
	case events.PaymentStatusChanged:
		m.onPaymentChanged(ctx, e)
	case events.DocumentGenerated:
		m.onDocumentGenerated(ctx, e)
	}
	return nil
}

func (m *Module) onUserRegistered(ctx context.Context, e events.UserRegistered) {
	user, err := m.users.GetByID(ctx, e.UserID)
	if err != nil {
		m.log.NotificationDropped("welcome_email", e.UserID.String(), err)
		return
	}
	if err := m.sender.SendWelcome(ctx, user.Email, user.FirstName); err != nil {
		m.log.NotificationDropped("welcome_email", e.UserID.String(), err)
	}
}

func (m *Module) onRequestCreated(ctx context.Context, e events.RequestCreated) {
	m.notify(ctx, inapp.CreateParams{
		UserID:    e.CitizenID,
		Type:      "request",
		Title:     "Demande soumise",
		Message: fmt.Sprintf("Votre demande de %s a été enregistrée (total %d XOF).",
			docTypeLabel(e.DocumentType), e.TotalPrice),
		RequestID: &e.RequestID,
	})

	// Agent dashboards of the commune see new work arrive live.
	m.sseSvc.PublishToCommune(e.CommuneID, sse.Event{
		Type:      sse.EventRequestCreated,
		RequestID: e.RequestID,
		Message:   "Nouvelle demande dans votre commune",
	})
}

func (m *Module) onRequestAssigned(ctx context.Context, e events.RequestAssigned) {
	m.notify(ctx, inapp.CreateParams{
		UserID:    e.AgentID,
		Type:      "assignment",
		Title:     "Nouvelle demande assignée",
		Message:   "Une demande vous a été assignée pour traitement.",
		RequestID: &e.RequestID,
	})
	m.sseSvc.Publish(e.AgentID, sse.Event{
		Type:      sse.EventRequestAssigned,
		RequestID: e.RequestID,
	})
}

func (m *Module) onRequestReassigned(ctx context.Context, e events.RequestReassigned) {
	m.notify(ctx, inapp.CreateParams{
		UserID:    e.NewAgentID,
		Type:      "assignment",
		Title:     "Demande réassignée",
		Message:   "Une demande vous a été transférée pour traitement.",
		RequestID: &e.RequestID,
	})
	m.notify(ctx, inapp.CreateParams{
		UserID:    e.PreviousAgentID,
		Type:      "assignment",
		Title:     "Demande transférée",
		Message:   "Une de vos demandes a été transférée à un autre agent.",
		RequestID: &e.RequestID,
	})
	m.sseSvc.Publish(e.NewAgentID, sse.Event{
		Type:      sse.EventRequestReassigned,
		RequestID: e.RequestID,
	})
}

func (m *Module) onStatusChanged(ctx context.Context, e events.RequestStatusChanged) {
	title, message := statusChangeText(e)
	m.notify(ctx, inapp.CreateParams{
		UserID:    e.CitizenID,
		Type:      "status",
		Title:     title,
		Message:   message,
		RequestID: &e.RequestID,
	})
	m.sseSvc.Publish(e.CitizenID, sse.Event{
		Type:      sse.EventStatusChanged,
		RequestID: e.RequestID,
		Data:      gin.H{"oldStatus": e.OldStatus, "newStatus": e.NewStatus},
	})

	switch e.NewStatus {
	case "completed":
		m.emailCitizen(ctx, e.CitizenID, "completed_email", func(user authrepo.User) error {
			return m.sender.SendRequestCompleted(ctx, user.Email, email.RequestEmailData{
				RecipientName: user.FirstName,
				DocumentType:  docTypeLabel(e.DocumentType),
				RequestID:     e.RequestID.String(),
				DownloadURL:   m.requestURL(e.RequestID),
			})
		})
	case "rejected":
		m.emailCitizen(ctx, e.CitizenID, "rejected_email", func(user authrepo.User) error {
			return m.sender.SendRequestRejected(ctx, user.Email, email.RequestEmailData{
				RecipientName: user.FirstName,
				DocumentType:  docTypeLabel(e.DocumentType),
				RequestID:     e.RequestID.String(),
				Reason:        e.Note,
			})
		})
	}
}

func (m *Module) onPaymentChanged(ctx context.Context, e events.PaymentStatusChanged) {
	title := "Paiement confirmé"
	message := fmt.Sprintf("Votre paiement de %d XOF a bien été reçu.", e.Amount)
	if e.Outcome != "succeeded" {
		title = "Paiement échoué"
		message = "Votre paiement n'a pas abouti. Vous pouvez réessayer depuis votre demande."
	}

	m.notify(ctx, inapp.CreateParams{
		UserID:    e.CitizenID,
		Type:      "payment",
		Title:     title,
		Message:   message,
		RequestID: &e.RequestID,
	})
	m.sseSvc.Publish(e.CitizenID, sse.Event{
		Type:      sse.EventPaymentUpdated,
		RequestID: e.RequestID,
		Data:      gin.H{"outcome": e.Outcome},
	})
}

func (m *Module) onDocumentGenerated(ctx context.Context, e events.DocumentGenerated) {
	m.notify(ctx, inapp.CreateParams{
		UserID:    e.CitizenID,
		Type:      "document",
		Title:     "Document disponible",
		Message:   fmt.Sprintf("Votre %s est prêt au téléchargement.", docTypeLabel(e.DocumentType)),
		RequestID: &e.RequestID,
	})
	m.sseSvc.Publish(e.CitizenID, sse.Event{
		Type:      sse.EventDocumentReady,
		RequestID: e.RequestID,
	})

	m.emailCitizen(ctx, e.CitizenID, "document_email", func(user authrepo.User) error {
		return m.sender.SendDocumentReady(ctx, user.Email, email.RequestEmailData{
			RecipientName: user.FirstName,
			DocumentType:  docTypeLabel(e.DocumentType),
			RequestID:     e.RequestID.String(),
			DownloadURL:   m.requestURL(e.RequestID),
		})
	})
}

// notify persists an in-app notification, swallowing failures.
func (m *Module) notify(ctx context.Context, params inapp.CreateParams) {
	if err := m.inappSvc.Send(ctx, params); err != nil {
		m.log.NotificationDropped(params.Type, params.UserID.String(), err)
	}
}

// emailCitizen resolves the recipient and runs the send, swallowing
// failures.
func (m *Module) emailCitizen(ctx context.Context, userID uuid.UUID, kind string, send func(authrepo.User) error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		m.log.NotificationDropped(kind, userID.String(), err)
		return
	}
	if err := send(user); err != nil {
		m.log.NotificationDropped(kind, userID.String(), err)
	}
}

// requestURL builds the frontend link for a request.
func (m *Module) requestURL(requestID uuid.UUID) string {
	return m.cfg.GetAppBaseURL() + "/requests/" + requestID.String()
}

func statusChangeText(e events.RequestStatusChanged) (string, string) {
	switch e.NewStatus {
	case "processing":
		return "Demande en cours de traitement",
			"Un agent a commencé le traitement de votre demande."
	case "completed":
		return "Demande traitée",
			fmt.Sprintf("Votre demande de %s a été traitée avec succès.", docTypeLabel(e.DocumentType))
	case "rejected":
		message := "Votre demande n'a pas pu aboutir."
		if e.Note != "" {
			message = "Votre demande n'a pas pu aboutir : " + e.Note
		}
		return "Demande rejetée", message
	}
	return "Demande mise à jour",
		fmt.Sprintf("Le statut de votre demande est passé à %s.", e.NewStatus)
}

// docTypeLabel renders a document type enum as user-facing French.
func docTypeLabel(documentType string) string {
	switch documentType {
	case "birth_certificate":
		return "acte de naissance"
	case "death_certificate":
		return "acte de décès"
	case "birth_declaration":
		return "déclaration de naissance"
	case "marriage_certificate":
		return "acte de mariage"
	case "nationality_certificate":
		return "certificat de nationalité"
	case "residence_certificate":
		return "certificat de résidence"
	case "criminal_record":
		return "extrait de casier judiciaire"
	}
	return documentType
}

// Compile-time checks
var (
	_ apphttp.Module = (*Module)(nil)
	_ events.Handler = (*Module)(nil)
)
