package gateway

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/apiresponses"
	"github.com/renderfleet/renderfleet/pkg/audit"
	"github.com/renderfleet/renderfleet/pkg/system"
)

// EventsAPIController exposes the recent event feed of a single service.
type EventsAPIController struct {
	log        *zap.SugaredLogger
	upstream   UpstreamClient
	registry   *account.Registry
	audit      *audit.Service
	middleware gin.HandlerFunc
}

// NewEventsAPIController creates a new events API controller.
func NewEventsAPIController(log *zap.SugaredLogger, upstream UpstreamClient, registry *account.Registry, auditService *audit.Service, middleware gin.HandlerFunc) *EventsAPIController {
	return &EventsAPIController{
		log:        log,
		upstream:   upstream,
		registry:   registry,
		audit:      auditService,
		middleware: middleware,
	}
}

// BasePath returns the base path for event routes
func (c *EventsAPIController) BasePath() string {
	return "events"
}

// Handlers returns middleware to apply to all routes
func (c *EventsAPIController) Handlers() []gin.HandlerFunc {
	if c.middleware != nil {
		return []gin.HandlerFunc{c.middleware}
	}
	return nil
}

// Register registers the event routes
func (c *EventsAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET(":accountRef/:serviceId", instrumentedHandler("/api/events/:accountRef/:serviceId", c.handleListEvents))
	return nil
}

// handleListEvents returns the most recent events of one service, newest
// first, exactly as the upstream orders them.
func (c *EventsAPIController) handleListEvents(ctx *gin.Context) {
	reqLog := system.EnrichReqLoggerWithAuth(ctx, system.GetReqLogger(ctx, c.log))

	acct, ok := resolveAccountParam(ctx, c.registry)
	if !ok {
		return
	}
	serviceID := ctx.Param("serviceId")

	events, err := c.upstream.ListEvents(ctx.Request.Context(), acct, serviceID)
	if err != nil {
		respondUpstreamError(ctx, reqLog, "list events", acct, err)
		return
	}

	c.audit.RecordEventsViewed(ctx.Request.Context(), actor(ctx), acct.Name, serviceID)
	apiresponses.RespondOK(ctx, events)
}
