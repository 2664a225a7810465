package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

// LoggerMiddleware logs every request; health probes go to debug
func LoggerMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []interface{}{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
		}
		if path == "/health" || path == "/metrics" {
			logger.Debug("Request processed", fields...)
			return
		}
		logger.Info("Request processed", fields...)
	}
}
