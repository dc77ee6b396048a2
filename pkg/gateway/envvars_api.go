package gateway

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/apiresponses"
	"github.com/renderfleet/renderfleet/pkg/audit"
	"github.com/renderfleet/renderfleet/pkg/render"
	"github.com/renderfleet/renderfleet/pkg/system"
)

// EnvVarsAPIController provides environment variable management for a single
// service: list, wholesale replace, and per-key upsert and delete.
type EnvVarsAPIController struct {
	log        *zap.SugaredLogger
	upstream   UpstreamClient
	registry   *account.Registry
	audit      *audit.Service
	middleware gin.HandlerFunc
}

// NewEnvVarsAPIController creates a new env var API controller.
func NewEnvVarsAPIController(log *zap.SugaredLogger, upstream UpstreamClient, registry *account.Registry, auditService *audit.Service, middleware gin.HandlerFunc) *EnvVarsAPIController {
	return &EnvVarsAPIController{
		log:        log,
		upstream:   upstream,
		registry:   registry,
		audit:      auditService,
		middleware: middleware,
	}
}

// BasePath returns the base path for env var routes
func (c *EnvVarsAPIController) BasePath() string {
	return "env-vars"
}

// Handlers returns middleware to apply to all routes
func (c *EnvVarsAPIController) Handlers() []gin.HandlerFunc {
	if c.middleware != nil {
		return []gin.HandlerFunc{c.middleware}
	}
	return nil
}

// Register registers the env var routes. The two-segment and three-segment
// PUT are distinct route patterns; the router disambiguates them, not the
// handlers.
func (c *EnvVarsAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET(":accountRef/:serviceId", instrumentedHandler("/api/env-vars/:accountRef/:serviceId", c.handleListEnvVars))
	rg.PUT(":accountRef/:serviceId", instrumentedHandler("/api/env-vars/:accountRef/:serviceId", c.handleReplaceEnvVars))
	rg.PUT(":accountRef/:serviceId/:key", instrumentedHandler("/api/env-vars/:accountRef/:serviceId/:key", c.handleUpsertEnvVar))
	rg.DELETE(":accountRef/:serviceId/:key", instrumentedHandler("/api/env-vars/:accountRef/:serviceId/:key", c.handleDeleteEnvVar))
	return nil
}

// UpsertEnvVarRequest carries the new value for one env var. A pointer
// distinguishes an absent value (400) from an explicit empty string, which
// is a legal value.
type UpsertEnvVarRequest struct {
	Value *string `json:"value" binding:"required"`
}

// handleListEnvVars returns the env vars of one service.
func (c *EnvVarsAPIController) handleListEnvVars(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))

	acct, ok := resolveAccountParam(ctx, c.registry)
	if !ok {
		return
	}
	serviceID := ctx.Param("serviceId")

	vars, err := c.upstream.ListEnvVars(ctx.Request.Context(), acct, serviceID)
	if err != nil {
		respondUpstreamError(ctx, reqLog, "list env vars", acct, err)
		return
	}

	c.audit.RecordEnvVarsViewed(ctx.Request.Context(), actor(ctx), acct.Name, serviceID, len(vars))
	apiresponses.RespondOK(ctx, vars)
}

// handleReplaceEnvVars replaces the full env var set of one service with the
// request body. An empty array clears every variable; there is no merge.
func (c *EnvVarsAPIController) handleReplaceEnvVars(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))

	acct, ok := resolveAccountParam(ctx, c.registry)
	if !ok {
		return
	}
	serviceID := ctx.Param("serviceId")

	var vars []render.EnvVar
	if err := ctx.ShouldBindJSON(&vars); err != nil {
		apiresponses.RespondBadRequest(ctx, "request body must be a JSON array of {key, value} objects")
		return
	}

	updated, err := c.upstream.ReplaceAllEnvVars(ctx.Request.Context(), acct, serviceID, vars)
	if err != nil {
		respondUpstreamError(ctx, reqLog, "replace env vars", acct, err)
		return
	}

	c.audit.RecordEnvVarsReplaced(ctx.Request.Context(), actor(ctx), acct.Name, serviceID, len(updated))
	reqLog.Infow("Replaced env vars", append(system.AccountFields(acct.ID, acct.Name), "serviceId", serviceID, "count", len(updated))...)
	apiresponses.RespondOK(ctx, updated)
}

// handleUpsertEnvVar sets one env var, creating it if absent.
func (c *EnvVarsAPIController) handleUpsertEnvVar(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))

	acct, ok := resolveAccountParam(ctx, c.registry)
	if !ok {
		return
	}
	serviceID := ctx.Param("serviceId")
	key := ctx.Param("key")

	var req UpsertEnvVarRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(ctx, "request body must carry a value field")
		return
	}

	updated, err := c.upstream.UpsertEnvVar(ctx.Request.Context(), acct, serviceID, key, *req.Value)
	if err != nil {
		respondUpstreamError(ctx, reqLog, "upsert env var", acct, err)
		return
	}

	c.audit.RecordEnvVarUpserted(ctx.Request.Context(), actor(ctx), acct.Name, serviceID, key)
	reqLog.Infow("Upserted env var", append(system.AccountFields(acct.ID, acct.Name), "serviceId", serviceID, "key", key)...)
	apiresponses.RespondOK(ctx, updated)
}

// handleDeleteEnvVar removes one env var. A key the upstream does not know
// comes back as an upstream 404 and surfaces through the 500 envelope; the
// delete is never reported as successful when nothing was deleted.
func (c *EnvVarsAPIController) handleDeleteEnvVar(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))

	acct, ok := resolveAccountParam(ctx, c.registry)
	if !ok {
		return
	}
	serviceID := ctx.Param("serviceId")
	key := ctx.Param("key")

	if err := c.upstream.DeleteEnvVar(ctx.Request.Context(), acct, serviceID, key); err != nil {
		respondUpstreamError(ctx, reqLog, "delete env var", acct, err)
		return
	}

	c.audit.RecordEnvVarDeleted(ctx.Request.Context(), actor(ctx), acct.Name, serviceID, key)
	reqLog.Infow("Deleted env var", append(system.AccountFields(acct.ID, acct.Name), "serviceId", serviceID, "key", key)...)
	apiresponses.RespondNoContent(ctx)
}

// resolveAccountParam resolves the :accountRef path parameter against the
// registry. On failure it writes the 404 envelope and reports false.
func resolveAccountParam(ctx *gin.Context, registry *account.Registry) (account.Account, bool) {
	ref := ctx.Param("accountRef")
	acct, err := registry.Resolve(ref)
	if err != nil {
		apiresponses.RespondNotFound(ctx, "account", ref)
		return account.Account{}, false
	}
	return acct, true
}
