package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/core"
)

// HTTPMetricsMiddleware records request counts and latency per route.
// The route template (not the raw URL) is used as the path label to keep
// cardinality bounded.
func HTTPMetricsMiddleware(recorder core.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
