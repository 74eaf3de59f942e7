package audit

import (
	"net/http"
	"strconv"

	apphttp "voicedesk_backend/internal/http"
	"voicedesk_backend/platform/httpkit"
	"voicedesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the audit bounded context module implementing http.Module.
type Module struct {
	service *Service
}

// NewModule creates and initializes the audit module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{service: NewService(repo, log)}
}

// Service exposes the audit service for other modules.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "audit"
}

// RegisterRoutes mounts audit routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Admin-only read access (JWT auth + admin role)
	ctx.Admin.GET("/audit", m.handleList)
}

// handleList returns the tenant's audit entries.
// GET /api/v1/admin/audit
func (m *Module) handleList(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	limit := parsePositiveInt(c.Query("limit"), 50, 200)
	offset := parsePositiveInt(c.Query("offset"), 0, 1<<30)

	entries, err := m.service.List(c.Request.Context(), *tenantID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpkit.OK(c, entries)
}

func parsePositiveInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
