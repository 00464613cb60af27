package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/pkg/metrics"
)

// Prometheus добавляет метрики Prometheus для HTTP запросов.
// Endpoint берется из шаблона маршрута, чтобы id не раздували кардинальность.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.RecordHTTPRequest(c.Request.Method, endpoint, status)
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
