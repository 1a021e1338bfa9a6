package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger logs every request with a short correlation ID, the client
// IP, and the duration, and echoes the ID back in X-Request-ID.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()[:8]
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		log.Printf("[INFO] request started id=%s method=%s path=%s client=%s",
			requestID, c.Request.Method, c.Request.URL.Path, c.ClientIP())

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		level := "INFO"
		switch {
		case status >= 500:
			level = "ERROR"
		case status >= 400:
			level = "WARN"
		}
		log.Printf("[%s] request completed id=%s method=%s path=%s status=%d duration=%s",
			level, requestID, c.Request.Method, c.Request.URL.Path, status, duration.Round(time.Microsecond))
	}
}
