package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request count and duration for every handler on the
// router.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := pathLabel(c.FullPath())
		c.Next()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// pathLabel collapses the route pattern to a low-cardinality label. Unmatched
// requests share one bucket so arbitrary URLs cannot grow the label set.
func pathLabel(p string) string {
	if p == "" {
		return "unmatched"
	}
	p = strings.Trim(p, "/")
	parts := strings.SplitN(p, "/", 3)
	if len(parts) >= 2 {
		return parts[0] + "_" + parts[1]
	}
	if len(parts) == 1 && parts[0] != "" {
		return parts[0]
	}
	return "root"
}
