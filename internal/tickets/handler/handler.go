package handler

import (
	"net/http"
	"strconv"

	"voicedesk_backend/internal/tickets/repository"
	"voicedesk_backend/internal/tickets/service"
	"voicedesk_backend/internal/tickets/transport"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for tickets.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new tickets handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the ticket routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:ticketId", h.GetByID)
	rg.PATCH("/:ticketId/status", h.UpdateStatus)
	rg.PATCH("/:ticketId/assign", h.Assign)
}

// List handles GET /api/v1/tickets
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", 50, 200)
	offset := queryInt(c, "offset", 0, 1<<20)
	tickets, err := h.svc.List(c.Request.Context(), tenantID, c.Query("status"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toResponse(t))
	}
	httpkit.OK(c, gin.H{"tickets": out})
}

// Create handles POST /api/v1/tickets
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}

	var req transport.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := identity.UserID()
	ticket, err := h.svc.Create(c.Request.Context(), tenantID, &actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(ticket))
}

// GetByID handles GET /api/v1/tickets/:ticketId
func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("ticketId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return
	}

	ticket, err := h.svc.Get(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(ticket))
}

// UpdateStatus handles PATCH /api/v1/tickets/:ticketId/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("ticketId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := identity.UserID()
	ticket, err := h.svc.UpdateStatus(c.Request.Context(), tenantID, id, &actor, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(ticket))
}

// Assign handles PATCH /api/v1/tickets/:ticketId/assign
func (h *Handler) Assign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("ticketId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return
	}

	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ticket, err := h.svc.Assign(c.Request.Context(), tenantID, id, req.AgentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(ticket))
}

func tenantFrom(c *gin.Context, identity httpkit.Identity) (uuid.UUID, bool) {
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}

func toResponse(t repository.Ticket) transport.TicketResponse {
	return transport.TicketResponse{
		ID:          t.ID,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      transport.TicketStatus(t.Status),
		Priority:    t.Priority,
		CallID:      t.CallID,
		AgentID:     t.AgentID,
		CallerName:  t.CallerName,
		CallerPhone: t.CallerPhone,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func queryInt(c *gin.Context, name string, def, max int) int {
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
