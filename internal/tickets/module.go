// Package tickets provides the support ticket domain module.
package tickets

import (
	"voicedesk_backend/internal/audit"
	"voicedesk_backend/internal/events"
	apphttp "voicedesk_backend/internal/http"
	"voicedesk_backend/internal/tickets/handler"
	"voicedesk_backend/internal/tickets/repository"
	"voicedesk_backend/internal/tickets/service"
	"voicedesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the tickets domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new tickets module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, auditor *audit.Service, eventBus events.Bus) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, auditor, eventBus)
	h := handler.New(svc, val)

	return &Module{handler: h, Service: svc}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "tickets"
}

// RegisterRoutes registers the module's routes under /api/v1/tickets.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	tickets := ctx.Protected.Group("/tickets")
	m.handler.RegisterRoutes(tickets)
}

var _ apphttp.Module = (*Module)(nil)
