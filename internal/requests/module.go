// Package requests provides the document request module: submission with
// frozen pricing and automatic agent assignment, the status lifecycle,
// processing notes and per-request file access.
package requests

import (
	communesrepo "civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/events"
	apphttp "civildocs_backend/internal/http"
	"civildocs_backend/internal/requests/handler"
	"civildocs_backend/internal/requests/repository"
	"civildocs_backend/internal/requests/service"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the requests bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the requests module with all its
// dependencies. The assigner is the assignment engine; the commune
// directory is satisfied by the communes repository.
func NewModule(pool *pgxpool.Pool, assigner service.Assigner, communes communesrepo.Repository, val *validator.Validator, log *logger.Logger, bus events.Bus) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, assigner, communes, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "requests"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts request routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Citizen endpoints
	citizen := ctx.Protected.Group("/requests")
	citizen.POST("", m.handler.Create)
	citizen.GET("", m.handler.ListMine)
	citizen.GET("/stats", m.handler.MyStats)
	citizen.GET("/:id", m.handler.Get)
	citizen.PATCH("/:id", m.handler.Update)
	citizen.DELETE("/:id", m.handler.Delete)
	citizen.POST("/:id/cancel", m.handler.Cancel)
	citizen.POST("/:id/identity-document", m.handler.UploadIdentityDocument)
	citizen.GET("/:id/identity-document", m.handler.IdentityDocumentURL)
	citizen.GET("/:id/document", m.handler.DocumentURL)
	citizen.GET("/:id/notes", m.handler.ListNotes)

	// Agent workbench endpoints
	agent := ctx.Agent.Group("/requests")
	agent.GET("", m.handler.ListAssigned)
	agent.GET("/stats", m.handler.AgentStats)
	agent.PATCH("/:id/status", m.handler.UpdateStatus)
	agent.POST("/:id/notes", m.handler.AddNote)

	// Admin oversight endpoints
	admin := ctx.Admin.Group("/requests")
	admin.GET("", m.handler.ListAll)
	admin.GET("/stats", m.handler.GlobalStats)
	admin.PATCH("/:id/status", m.handler.UpdateStatus)
	admin.POST("/:id/notes", m.handler.AddNote)
	admin.POST("/:id/reassign", m.handler.Reassign)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
