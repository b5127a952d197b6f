package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// skipPaths are infrastructure routes that would only add scrape noise.
var skipPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// HTTPMetrics is Gin middleware that records HTTP request metrics.
// It tracks request count and latency by method, route pattern, and status code.
func HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath() // Route pattern, not the raw URL (bounded cardinality)
		if skipPaths[path] {
			c.Next()
			return
		}
		if path == "" {
			path = "unknown" // NoRoute
		}
		start := time.Now()
		method := c.Request.Method

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
