package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware guards operational endpoints with a static API key.
type AdminMiddleware struct {
	apiKey string
}

// NewAdminMiddleware creates the admin guard. An empty key disables the
// admin surface entirely rather than leaving it open.
func NewAdminMiddleware(apiKey string) *AdminMiddleware {
	return &AdminMiddleware{apiKey: apiKey}
}

// RequireAdminAuth validates the admin API key from the Authorization
// bearer token or the X-API-Key header.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.apiKey == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "admin disabled",
				"message": "No admin API key is configured on this server",
			})
			c.Abort()
			return
		}

		if am.ValidateAdminKey(bearerToken(c)) || am.ValidateAdminKey(c.GetHeader("X-API-Key")) {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
		c.Abort()
	}
}

// ValidateAdminKey reports whether key matches the configured admin key.
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	return key != "" && key == am.apiKey
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
