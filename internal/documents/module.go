package documents

import (
	"context"

	"civildocs_backend/internal/events"
	"civildocs_backend/platform/logger"
)

// Module subscribes the certificate pipeline to request lifecycle events.
type Module struct {
	svc *Service
	log *logger.Logger
}

// NewModule wraps the generation service as an event subscriber.
func NewModule(svc *Service, log *logger.Logger) *Module {
	return &Module{svc: svc, log: log}
}

// RegisterHandlers subscribes the module to lifecycle transitions.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RequestStatusChanged{}.EventName(), m)

	m.log.Info("documents module registered event handlers")
}

// Handle triggers certificate generation when a request completes.
// Generation failures are logged, never propagated; the request stays
// completed and the certificate can be regenerated by replaying the event.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.RequestStatusChanged)
	if !ok || e.NewStatus != "completed" {
		return nil
	}
	if err := m.svc.Generate(ctx, e.RequestID); err != nil {
		m.log.Error("certificate generation failed",
			"requestId", e.RequestID.String(), "error", err.Error())
	}
	return nil
}

var _ events.Handler = (*Module)(nil)
