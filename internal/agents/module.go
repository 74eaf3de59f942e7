package agents

import (
	"net/http"

	"voicedesk_backend/internal/audit"
	apphttp "voicedesk_backend/internal/http"
	"voicedesk_backend/platform/apperr"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// upsertAgentRequest is the body of POST and PUT agent endpoints.
type upsertAgentRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	Email  string `json:"email" validate:"required,email"`
	Active *bool  `json:"active,omitempty"`
}

// Module represents the agents domain module.
type Module struct {
	repo    *Repository
	val     *validator.Validator
	auditor *audit.Service
}

// NewModule creates a new agents module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, auditor *audit.Service) *Module {
	return &Module{repo: NewRepository(pool), val: val, auditor: auditor}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "agents"
}

// RegisterRoutes registers the module's routes under /api/v1/agents.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	agents := ctx.Protected.Group("/agents")
	agents.GET("", m.list)
	agents.POST("", m.create)
	agents.GET("/:agentId", m.get)
	agents.PUT("/:agentId", m.update)
	agents.DELETE("/:agentId", m.remove)
}

func (m *Module) list(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	agents, err := m.repo.List(c.Request.Context(), tenantID)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to list agents", err))
		return
	}
	if agents == nil {
		agents = []Agent{}
	}
	httpkit.OK(c, gin.H{"agents": agents})
}

func (m *Module) create(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	var req upsertAgentRequest
	if !m.bind(c, &req) {
		return
	}

	id := uuid.New()
	if err := m.repo.Create(c.Request.Context(), tenantID, id, req.Name, req.Email); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to create agent", err))
		return
	}
	m.audit(c, tenantID, audit.ActionAgentCreate, id)

	agent, err := m.repo.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to load agent", err))
		return
	}
	httpkit.JSON(c, http.StatusCreated, agent)
}

func (m *Module) get(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	id, ok := m.agentID(c)
	if !ok {
		return
	}

	agent, err := m.repo.GetByID(c.Request.Context(), tenantID, id)
	if err == ErrAgentNotFound {
		httpkit.HandleError(c, apperr.New(apperr.KindNotFound, "agent not found"))
		return
	}
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to load agent", err))
		return
	}
	httpkit.OK(c, agent)
}

func (m *Module) update(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	id, ok := m.agentID(c)
	if !ok {
		return
	}
	var req upsertAgentRequest
	if !m.bind(c, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rows, err := m.repo.Update(c.Request.Context(), tenantID, id, req.Name, req.Email, active)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to update agent", err))
		return
	}
	if rows == 0 {
		httpkit.HandleError(c, apperr.New(apperr.KindNotFound, "agent not found"))
		return
	}
	m.audit(c, tenantID, audit.ActionAgentUpdate, id)

	agent, err := m.repo.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to load agent", err))
		return
	}
	httpkit.OK(c, agent)
}

func (m *Module) remove(c *gin.Context) {
	tenantID, ok := m.tenant(c)
	if !ok {
		return
	}
	id, ok := m.agentID(c)
	if !ok {
		return
	}

	rows, err := m.repo.SoftDelete(c.Request.Context(), tenantID, id)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to delete agent", err))
		return
	}
	if rows == 0 {
		httpkit.HandleError(c, apperr.New(apperr.KindNotFound, "agent not found"))
		return
	}
	m.audit(c, tenantID, audit.ActionAgentDelete, id)
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

func (m *Module) agentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid agent id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (m *Module) bind(c *gin.Context, req *upsertAgentRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	if err := m.val.Struct(*req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

func (m *Module) audit(c *gin.Context, tenantID uuid.UUID, action string, entityID uuid.UUID) {
	identity := httpkit.GetIdentity(c)
	var actor *uuid.UUID
	if identity.IsAuthenticated() {
		id := identity.UserID()
		actor = &id
	}
	m.auditor.Record(c.Request.Context(), tenantID, actor, action, "agent", entityID, nil)
}

var _ apphttp.Module = (*Module)(nil)
