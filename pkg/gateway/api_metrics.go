package gateway

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/renderfleet/renderfleet/pkg/metrics"
)

// instrumentedHandler wraps a gin handler to record API metrics consistently.
// The route label is the registered pattern, not the concrete URL, so
// cardinality stays bounded no matter what path values clients send.
func instrumentedHandler(route string, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		handler(c)
		metrics.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
