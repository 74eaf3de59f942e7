package handler

import (
	"net/http"
	"strconv"
	"time"

	"voicedesk_backend/internal/appointments/repository"
	"voicedesk_backend/internal/appointments/service"
	"voicedesk_backend/internal/appointments/transport"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for appointments.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new appointments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the appointment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Book)
	rg.GET("/:appointmentId", h.GetByID)
	rg.DELETE("/:appointmentId", h.Cancel)
}

// List handles GET /api/v1/appointments
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "from must be RFC3339", nil)
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "to must be RFC3339", nil)
			return
		}
		to = &t
	}

	limit := queryInt(c, "limit", 50, 200)
	offset := queryInt(c, "offset", 0, 1<<20)
	appointments, err := h.svc.List(c.Request.Context(), tenantID, from, to, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, toResponse(a))
	}
	httpkit.OK(c, gin.H{"appointments": out})
}

// Book handles POST /api/v1/appointments
func (h *Handler) Book(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}

	var req transport.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := identity.UserID()
	appointment, err := h.svc.Book(c.Request.Context(), tenantID, &actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(appointment))
}

// GetByID handles GET /api/v1/appointments/:appointmentId
func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("appointmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return
	}

	appointment, err := h.svc.Get(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(appointment))
}

// Cancel handles DELETE /api/v1/appointments/:appointmentId
func (h *Handler) Cancel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := tenantFrom(c, identity)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("appointmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return
	}

	appointment, err := h.svc.Cancel(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(appointment))
}

func tenantFrom(c *gin.Context, identity httpkit.Identity) (uuid.UUID, bool) {
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}

func toResponse(a repository.Appointment) transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:            a.ID,
		Status:        transport.AppointmentStatus(a.Status),
		StartsAt:      a.StartsAt,
		EndsAt:        a.EndsAt,
		CustomerName:  a.CustomerName,
		CustomerPhone: a.CustomerPhone,
		Notes:         a.Notes,
		CallID:        a.CallID,
		AgentID:       a.AgentID,
		CreatedAt:     a.CreatedAt,
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
