// Package payments provides the payment coordinator module: gateway intent
// creation, idempotent outcome reconciliation and the signed webhook.
package payments

import (
	"civildocs_backend/internal/events"
	apphttp "civildocs_backend/internal/http"
	"civildocs_backend/internal/payments/gateway"
	"civildocs_backend/internal/payments/handler"
	"civildocs_backend/internal/payments/repository"
	"civildocs_backend/internal/payments/service"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the payments bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	cfg     config.GatewayConfig
}

// NewModule creates and initializes the payments module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.GatewayConfig, val *validator.Validator, log *logger.Logger, bus events.Bus) *Module {
	repo := repository.New(pool)
	gw := gateway.NewClient(cfg, log)
	svc := service.New(repo, gw, cfg, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		cfg:     cfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts payment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/requests/:id/payment", m.handler.Initialize)
	ctx.Protected.POST("/payments/confirm", m.handler.Confirm)

	// The gateway authenticates with the signed body, not a JWT.
	ctx.V1.POST("/payments/webhook",
		handler.VerifySignature(m.cfg.GetGatewayWebhookSecret()),
		m.handler.Webhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
