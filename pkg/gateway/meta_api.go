package gateway

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/apiresponses"
	"github.com/renderfleet/renderfleet/pkg/version"
)

// MetaAPIController serves endpoints about the gateway itself: build info and
// the configured account list.
type MetaAPIController struct {
	log        *zap.SugaredLogger
	registry   *account.Registry
	middleware gin.HandlerFunc
}

// NewMetaAPIController creates a new meta API controller.
func NewMetaAPIController(log *zap.SugaredLogger, registry *account.Registry, middleware gin.HandlerFunc) *MetaAPIController {
	return &MetaAPIController{
		log:        log,
		registry:   registry,
		middleware: middleware,
	}
}

// BasePath returns the base path for meta routes. Empty so the routes sit
// directly under /api.
func (c *MetaAPIController) BasePath() string {
	return ""
}

// Handlers returns no group middleware; /api/version stays reachable without
// a session so probes and rfctl can identify the gateway before login.
func (c *MetaAPIController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register registers the meta routes. The account list is protected
// per-route.
func (c *MetaAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("version", instrumentedHandler("/api/version", c.handleVersion))

	handlers := []gin.HandlerFunc{instrumentedHandler("/api/accounts", c.handleListAccounts)}
	if c.middleware != nil {
		handlers = append([]gin.HandlerFunc{c.middleware}, handlers...)
	}
	rg.GET("accounts", handlers...)
	return nil
}

// AccountResponse is one entry of the sanitized account list. API keys never
// leave the process.
type AccountResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleVersion returns build metadata.
func (c *MetaAPIController) handleVersion(ctx *gin.Context) {
	apiresponses.RespondOK(ctx, version.GetBuildInfo())
}

// handleListAccounts returns the configured accounts in registry order.
func (c *MetaAPIController) handleListAccounts(ctx *gin.Context) {
	accounts := c.registry.Accounts()
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountResponse{ID: a.ID, Name: a.Name})
	}
	apiresponses.RespondOK(ctx, out)
}
