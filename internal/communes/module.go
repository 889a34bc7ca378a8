// Package communes provides the commune directory module: the set of
// municipalities the platform serves, their activation state and request
// counters.
package communes

import (
	"civildocs_backend/internal/communes/handler"
	"civildocs_backend/internal/communes/repository"
	"civildocs_backend/internal/communes/service"
	apphttp "civildocs_backend/internal/http"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the communes bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the communes module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "communes"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts commune routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public read-only endpoints feeding the request form
	ctx.V1.GET("/communes", m.handler.ListActive)
	ctx.V1.GET("/communes/:id", m.handler.GetByID)

	// Admin-only CRUD endpoints
	adminGroup := ctx.Admin.Group("/communes")
	adminGroup.GET("", m.handler.List)
	adminGroup.POST("", m.handler.Create)
	adminGroup.GET("/:id", m.handler.GetByID)
	adminGroup.PUT("/:id", m.handler.Update)
	adminGroup.PATCH("/:id/active", m.handler.SetActive)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
