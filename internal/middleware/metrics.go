package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trip-control-api/internal/service"
)

// unmatchedRoute labels requests gin could not route so probing scanners cannot inflate label cardinality.
const unmatchedRoute = "unmatched"

// Metrics records request count and latency per route template, skipping the ops endpoints.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := map[string]struct{}{"/metrics": {}, "/health": {}, "/ready": {}}
	for _, path := range skip {
		skipped[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
