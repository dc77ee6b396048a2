package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/apiresponses"
	"github.com/renderfleet/renderfleet/pkg/audit"
	"github.com/renderfleet/renderfleet/pkg/auth"
	"github.com/renderfleet/renderfleet/pkg/render"
	"github.com/renderfleet/renderfleet/pkg/system"
)

// UpstreamClient is the slice of the hosting API the controllers need.
// *render.Client satisfies it; tests inject fakes with scripted responses.
type UpstreamClient interface {
	ListServices(ctx context.Context, acct account.Account) ([]render.ServiceSummary, error)
	TriggerDeploy(ctx context.Context, acct account.Account, serviceID string) (*render.Deploy, error)
	ListEvents(ctx context.Context, acct account.Account, serviceID string) ([]render.Event, error)
	ListEnvVars(ctx context.Context, acct account.Account, serviceID string) ([]render.EnvVar, error)
	ReplaceAllEnvVars(ctx context.Context, acct account.Account, serviceID string, vars []render.EnvVar) ([]render.EnvVar, error)
	UpsertEnvVar(ctx context.Context, acct account.Account, serviceID, key, value string) (*render.EnvVar, error)
	DeleteEnvVar(ctx context.Context, acct account.Account, serviceID, key string) error
}

// ServicesAPIController provides the cross-account service listing and the
// deploy trigger endpoint.
type ServicesAPIController struct {
	log        *zap.SugaredLogger
	upstream   UpstreamClient
	registry   *account.Registry
	audit      *audit.Service
	middleware gin.HandlerFunc
}

// NewServicesAPIController creates a new services API controller.
func NewServicesAPIController(log *zap.SugaredLogger, upstream UpstreamClient, registry *account.Registry, auditService *audit.Service, middleware gin.HandlerFunc) *ServicesAPIController {
	return &ServicesAPIController{
		log:        log,
		upstream:   upstream,
		registry:   registry,
		audit:      auditService,
		middleware: middleware,
	}
}

// BasePath returns the base path for service routes. Empty so the routes sit
// directly under /api.
func (c *ServicesAPIController) BasePath() string {
	return ""
}

// Handlers returns middleware to apply to all routes
func (c *ServicesAPIController) Handlers() []gin.HandlerFunc {
	if c.middleware != nil {
		return []gin.HandlerFunc{c.middleware}
	}
	return nil
}

// Register registers the service routes
func (c *ServicesAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("services", instrumentedHandler("/api/services", c.handleListServices))
	rg.POST("deploy", instrumentedHandler("/api/deploy", c.handleTriggerDeploy))
	return nil
}

// DeployRequest selects the service to deploy. The account is referenced by
// id or name, same as the path parameter on the other endpoints.
type DeployRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	ServiceID string `json:"serviceId" binding:"required"`
}

// handleListServices queries every configured account concurrently and
// returns one flat list. Results keep registry order no matter which account
// answered first, so repeated calls against unchanged accounts are
// byte-for-byte identical.
func (c *ServicesAPIController) handleListServices(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))
	reqCtx := ctx.Request.Context()
	accounts := c.registry.Accounts()

	type result struct {
		services []render.ServiceSummary
		err      error
	}
	results := make([]result, len(accounts))

	var wg sync.WaitGroup
	for i := 0; i < len(accounts); i++ {
		wg.Add(1)
		go func(i int, acct account.Account) {
			defer wg.Done()
			services, err := c.upstream.ListServices(reqCtx, acct)
			results[i] = result{services: services, err: err}
		}(i, accounts[i])
	}
	wg.Wait()

	// Scan in registry order so the reported failure is deterministic even
	// when several accounts fail in the same round.
	aggregated := make([]render.ServiceSummary, 0, len(accounts))
	for i := 0; i < len(results); i++ {
		if results[i].err != nil {
			respondUpstreamError(ctx, reqLog, "list services", accounts[i], results[i].err)
			return
		}
		aggregated = append(aggregated, results[i].services...)
	}

	c.audit.RecordServicesListed(reqCtx, actor(ctx), len(accounts), len(aggregated))
	reqLog.Debugw("Listed services", "accounts", len(accounts), "services", len(aggregated))
	apiresponses.RespondOK(ctx, aggregated)
}

// handleTriggerDeploy starts a deploy for one service in one account.
func (c *ServicesAPIController) handleTriggerDeploy(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))

	var req DeployRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(ctx, "request body must carry accountId and serviceId")
		return
	}

	acct, err := c.registry.Resolve(req.AccountID)
	if err != nil {
		apiresponses.RespondNotFound(ctx, "account", req.AccountID)
		return
	}

	deploy, err := c.upstream.TriggerDeploy(ctx.Request.Context(), acct, req.ServiceID)
	if err != nil {
		respondUpstreamError(ctx, reqLog, "trigger deploy", acct, err)
		return
	}

	c.audit.RecordDeployTriggered(ctx.Request.Context(), actor(ctx), acct.Name, req.ServiceID, deploy.ID)
	reqLog.Infow("Deploy triggered", append(system.AccountFields(acct.ID, acct.Name), "serviceId", req.ServiceID, "deployId", deploy.ID)...)
	apiresponses.RespondOK(ctx, deploy)
}

// actor returns the operator name the session middleware left in the context.
func actor(ctx *gin.Context) string {
	return ctx.GetString(auth.UsernameKey)
}

// respondUpstreamError maps an upstream failure onto the 500 envelope.
// Upstream HTTP errors keep their status and message so the caller can see
// what the hosting API said; transport failures get a generic message and the
// detail stays in the log.
func respondUpstreamError(ctx *gin.Context, log *zap.SugaredLogger, operation string, acct account.Account, err error) {
	var upErr *render.UpstreamError
	if errors.As(err, &upErr) {
		log.Warnw("Upstream request failed", append(system.AccountFields(acct.ID, acct.Name), "operation", operation, "status", upErr.StatusCode, "message", upErr.Message)...)
		apiresponses.RespondInternalErrorSimple(ctx, upErr.Error())
		return
	}
	log.Errorw("Upstream request failed", append(system.AccountFields(acct.ID, acct.Name), "operation", operation, "error", err)...)
	apiresponses.RespondInternalErrorSimple(ctx, fmt.Sprintf("failed to %s for account %s", operation, acct.Name))
}
