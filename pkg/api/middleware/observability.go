package middleware

import (
	"strconv"
	"time"

	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// HandleLogging logs one structured line per request. Grounded on the
// teacher's HandleLogging (AMD-AGI-Primus-SaFE Lens core pkg/router/
// middleware/logging.go).
func HandleLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		}).Info("request")
	}
}

// HandleMetrics records falconeri_api_requests_total and
// falconeri_api_request_duration_seconds. Grounded on the teacher's
// HandleMetrics (AMD-AGI-Primus-SaFE Lens core pkg/router/middleware/
// metrics.go), simplified to request count and duration since falconeri
// has no in-flight-gauge use case.
func HandleMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		timer := metrics.NewTimer()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, c.Request.Method, path)
	}
}
