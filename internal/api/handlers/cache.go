package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmarkin/regimecast-ai-go/internal/cache"
)

// BarCacheAdmin is the cache-management surface exposed to operators.
type BarCacheAdmin interface {
	GetStats() cache.BarCacheStats
	InvalidateTicker(ctx context.Context, ticker string) (int, error)
	Clear(ctx context.Context) error
}

// CacheHandler handles bar-cache monitoring and invalidation endpoints.
type CacheHandler struct {
	barCache BarCacheAdmin
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(barCache BarCacheAdmin) *CacheHandler {
	return &CacheHandler{barCache: barCache}
}

func (h *CacheHandler) cacheDisabled(c *gin.Context) bool {
	if h.barCache != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":   "cache disabled",
		"message": "Bar caching is not enabled on this server",
	})
	return true
}

// GetCacheStats returns hit, miss, and set counters for the bar cache.
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	if h.cacheDisabled(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": h.barCache.GetStats()})
}

// InvalidateTicker drops every cached bar window for one ticker.
func (h *CacheHandler) InvalidateTicker(c *gin.Context) {
	if h.cacheDisabled(c) {
		return
	}

	ticker := c.Param("ticker")
	removed, err := h.barCache.InvalidateTicker(c.Request.Context(), ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "invalidated": removed})
}

// ClearCache drops every cached bar window for every ticker.
func (h *CacheHandler) ClearCache(c *gin.Context) {
	if h.cacheDisabled(c) {
		return
	}

	if err := h.barCache.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "bar cache cleared"})
}
