// Package agents provides the agent directory module: admin provisioning
// of commune agents and their daily quota configuration.
package agents

import (
	"civildocs_backend/internal/agents/handler"
	"civildocs_backend/internal/agents/repository"
	"civildocs_backend/internal/agents/service"
	"civildocs_backend/internal/events"
	apphttp "civildocs_backend/internal/http"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the agents bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the agents module with all its dependencies.
func NewModule(pool *pgxpool.Pool, communes service.CommuneChecker, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, communes, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "agents"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts agent directory routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	adminGroup := ctx.Admin.Group("/agents")
	adminGroup.GET("", m.handler.List)
	adminGroup.POST("", m.handler.Create)
	adminGroup.GET("/:id", m.handler.GetByID)
	adminGroup.PUT("/:id", m.handler.Update)
	adminGroup.PATCH("/:id/active", m.handler.SetActive)
	adminGroup.GET("/stats/:communeId", m.handler.StatsByCommune)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
