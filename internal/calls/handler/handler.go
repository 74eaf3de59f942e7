// Package handler exposes the HTTP surface of the calls module.
package handler

import (
	"net/http"
	"strconv"

	"voicedesk_backend/internal/calls/repository"
	"voicedesk_backend/internal/calls/service"
	"voicedesk_backend/internal/calls/transport"
	"voicedesk_backend/platform/apperr"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/logger"
	"voicedesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles call HTTP endpoints.
type Handler struct {
	svc      *service.Service
	validate *validator.Validator
	log      *logger.Logger
}

// NewHandler creates a new calls handler.
func NewHandler(svc *service.Service, validate *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, validate: validate, log: log}
}

// HandleCallEvent ingests a lifecycle event from the voice provider. The
// endpoint answers HTTP 200 unconditionally; every failure mode is expressed
// inside the response envelope so the provider never retry-storms on 4xx/5xx.
func (h *Handler) HandleCallEvent(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("call event handler panicked", "panic", r)
			c.JSON(http.StatusOK, transport.Failure(transport.CodeInternalError, nil))
		}
	}()

	identity := httpkit.GetIdentity(c)
	if identity == nil || !identity.IsAuthenticated() || identity.TenantID() == nil {
		c.JSON(http.StatusOK, transport.Failure(transport.CodeUnauthorized, nil))
		return
	}

	var req transport.CallEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, transport.Failure(transport.CodeInvalidJSON, err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusOK, transport.Failure(transport.CodeValidationFailed, err.Error()))
		return
	}

	resp := h.svc.ProcessEvent(c.Request.Context(), *identity.TenantID(), req)
	c.JSON(http.StatusOK, resp)
}

// Ping confirms the ingestion endpoint is reachable. The voice provider
// probes this before placing calls.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// List returns the tenant's calls, newest first.
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	limit := parseQueryInt(c, "limit", 50, 200)
	offset := parseQueryInt(c, "offset", 0, 1<<20)

	calls, err := h.svc.ListCalls(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		h.log.DatabaseError("calls.list", err)
		httpkit.HandleError(c, apperr.New(apperr.KindInternal, "failed to list calls"))
		return
	}

	out := make([]transport.CallResponse, 0, len(calls))
	for _, call := range calls {
		out = append(out, toResponse(call))
	}
	httpkit.OK(c, gin.H{"calls": out})
}

// Get returns a single call by its internal identifier.
func (h *Handler) Get(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		httpkit.HandleError(c, apperr.New(apperr.KindValidation, "invalid call id"))
		return
	}

	call, err := h.svc.GetCall(c.Request.Context(), tenantID, id)
	if err == repository.ErrCallNotFound {
		httpkit.HandleError(c, apperr.New(apperr.KindNotFound, "call not found"))
		return
	}
	if err != nil {
		h.log.DatabaseError("calls.get", err)
		httpkit.HandleError(c, apperr.New(apperr.KindInternal, "failed to load call"))
		return
	}

	httpkit.OK(c, toResponse(call))
}

func tenantFrom(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}

func toResponse(call repository.Call) transport.CallResponse {
	return transport.CallResponse{
		ID:              call.ID,
		VapiCallID:      call.VapiCallID,
		CallType:        call.CallType,
		Direction:       call.Direction,
		StartedAt:       call.StartedAt,
		EndedAt:         call.EndedAt,
		DurationSeconds: call.DurationSeconds,
		CostUSD:         call.CostUSD,
		Outcome:         call.Outcome,
		CompletionState: call.CompletionState,
		RawPayload:      call.RawPayload,
		CreatedAt:       call.CreatedAt,
	}
}

func parseQueryInt(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
