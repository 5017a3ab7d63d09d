package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

const dateLayout = "2006-01-02"

// respondError translates the typed service errors into HTTP statuses with
// the shared JSON error envelope.
func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsInvalidParameter(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parameter", "message": err.Error()})
	case utils.IsInsufficientHistory(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient history", "message": err.Error()})
	case utils.IsDataUnavailable(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "data unavailable", "message": err.Error()})
	case utils.IsRateLimited(err):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited", "message": err.Error()})
	case utils.IsProviderError(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider unavailable", "message": err.Error()})
	case utils.IsClusteringError(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clustering failed", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "message": err.Error()})
	}
}

// dateQuery parses an optional YYYY-MM-DD query parameter, keeping current
// when the parameter is absent.
func dateQuery(c *gin.Context, name string, current time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return current, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, utils.NewInvalidParameterErrorf("%s must be formatted YYYY-MM-DD, got %q", name, raw)
	}
	return t, nil
}

// intQuery parses an optional integer query parameter, keeping current when
// the parameter is absent.
func intQuery(c *gin.Context, name string, current int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return current, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewInvalidParameterErrorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}
