package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmarkin/regimecast-ai-go/internal/logging"
)

// RequestIDHeader carries the request id on both requests and responses.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key the assigned id is stored under.
const requestIDKey = "request_id"

// RequestID assigns every request an id, honoring one supplied by the
// caller so ids stay stable across proxies.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or an empty
// string when the middleware did not run.
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger emits one structured access-log record per request.
func RequestLogger(logger *logging.StandardLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.LogAPIRequest(
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			RequestIDFromContext(c),
		)
	}
}
