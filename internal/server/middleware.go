package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/pkg/logger"
)

const maxBodyBytes = 1 << 20

// requestLogger логирует HTTP запросы
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status_code", c.Writer.Status()),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("HTTP request completed", fields...)
			return
		}
		s.logger.Debug("HTTP request completed", fields...)
	}
}

// securityHeaders добавляет заголовки безопасности
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// limitBody ограничивает размер тела запроса
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": errorBody{
				Code:    "REQUEST_TOO_LARGE",
				Message: "request body too large",
			}})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
