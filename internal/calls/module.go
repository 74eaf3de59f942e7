// Package calls is the call lifecycle bounded context: webhook ingestion,
// reconciliation, and the read API over call rows.
package calls

import (
	"voicedesk_backend/internal/calls/handler"
	"voicedesk_backend/internal/calls/service"
	internalhttp "voicedesk_backend/internal/http"
	"voicedesk_backend/platform/logger"
	"voicedesk_backend/platform/validator"
)

// Module wires the calls bounded context into the HTTP router.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the calls module.
func NewModule(svc *service.Service, validate *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: handler.NewHandler(svc, validate, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "calls" }

// RegisterRoutes mounts the calls routes. The events endpoint uses the
// non-aborting session middleware: it must answer 200 with an envelope
// even when the bearer token is missing or invalid.
func (m *Module) RegisterRoutes(ctx *internalhttp.RouterContext) {
	events := ctx.V1.Group("/calls/events")
	events.Use(ctx.SessionMiddleware)
	events.POST("", m.handler.HandleCallEvent)
	events.GET("", m.handler.Ping)

	calls := ctx.Protected.Group("/calls")
	calls.GET("", m.handler.List)
	calls.GET("/:callId", m.handler.Get)
}
