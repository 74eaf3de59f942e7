// Package phonelines manages the inbound phone numbers a tenant exposes to
// its voice agents. Numbers are stored in E.164 form.
package phonelines

import (
	"net/http"

	"voicedesk_backend/internal/audit"
	apphttp "voicedesk_backend/internal/http"
	"voicedesk_backend/platform/apperr"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/phone"
	"voicedesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// createLineRequest is the body of POST /phone-lines.
type createLineRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=32"`
	Label       string `json:"label" validate:"max=120"`
	AgentName   string `json:"agentName" validate:"max=120"`
}

// Module represents the phone lines domain module.
type Module struct {
	repo    *Repository
	val     *validator.Validator
	auditor *audit.Service
}

// NewModule creates a new phone lines module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, auditor *audit.Service) *Module {
	return &Module{repo: NewRepository(pool), val: val, auditor: auditor}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "phonelines"
}

// RegisterRoutes registers the module's routes under /api/v1/phone-lines.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	lines := ctx.Protected.Group("/phone-lines")
	lines.GET("", m.list)
	lines.POST("", m.create)
	lines.DELETE("/:lineId", m.remove)
}

func (m *Module) list(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	lines, err := m.repo.List(c.Request.Context(), tenantID)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to list phone lines", err))
		return
	}
	if lines == nil {
		lines = []Line{}
	}
	httpkit.OK(c, gin.H{"phoneLines": lines})
}

func (m *Module) create(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	var req createLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	normalized, err := phone.ValidateE164(req.PhoneNumber)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "phoneNumber must be a valid phone number", nil)
		return
	}

	id := uuid.New()
	if err := m.repo.Create(c.Request.Context(), tenantID, id, normalized, req.Label, req.AgentName); err != nil {
		if isUniqueViolation(err) {
			httpkit.HandleError(c, apperr.New(apperr.KindConflict, "phone number already registered"))
			return
		}
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to create phone line", err))
		return
	}
	m.audit(c, tenantID, audit.ActionPhoneLineCreate, id)

	line, err := m.repo.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to load phone line", err))
		return
	}
	httpkit.JSON(c, http.StatusCreated, line)
}

func (m *Module) remove(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid phone line id", nil)
		return
	}

	rows, err := m.repo.Delete(c.Request.Context(), tenantID, id)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to delete phone line", err))
		return
	}
	if rows == 0 {
		httpkit.HandleError(c, apperr.New(apperr.KindNotFound, "phone line not found"))
		return
	}
	m.audit(c, tenantID, audit.ActionPhoneLineDelete, id)
	c.Status(http.StatusNoContent)
}

func (m *Module) tenant(c *gin.Context) (uuid.UUID, bool) {
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

func (m *Module) audit(c *gin.Context, tenantID uuid.UUID, action string, entityID uuid.UUID) {
	identity := httpkit.GetIdentity(c)
	var actor *uuid.UUID
	if identity.IsAuthenticated() {
		id := identity.UserID()
		actor = &id
	}
	m.auditor.Record(c.Request.Context(), tenantID, actor, action, "phone_line", entityID, nil)
}

var _ apphttp.Module = (*Module)(nil)
