package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkin/regimecast-ai-go/internal/cache"
	"github.com/dmarkin/regimecast-ai-go/internal/middleware"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

const testAdminKey = "test-admin-key"

func setupCacheRouter(t *testing.T, barCache BarCacheAdmin) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	handler := NewCacheHandler(barCache)
	adminMiddleware := middleware.NewAdminMiddleware(testAdminKey)

	admin := router.Group("/api/v1/admin")
	admin.Use(adminMiddleware.RequireAdminAuth())
	{
		admin.GET("/cache/stats", handler.GetCacheStats)
		admin.POST("/cache/invalidate/:ticker", handler.InvalidateTicker)
		admin.POST("/cache/clear", handler.ClearCache)
	}
	return router
}

func setupBarCache(t *testing.T) *cache.RedisBarCache {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return cache.NewRedisBarCache(client, 15*time.Minute)
}

func cachedBars(closes ...float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = models.Bar{
			Date:   date.AddDate(0, 0, i),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	return req
}

func TestCacheEndpoints_RequireAdminKey(t *testing.T) {
	router := setupCacheRouter(t, setupBarCache(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestCacheEndpoints_GetCacheStats(t *testing.T) {
	barCache := setupBarCache(t)
	router := setupCacheRouter(t, barCache)

	ctx := context.Background()
	barCache.Set(ctx, "AAPL", "2024-01-02", "2024-06-28", cachedBars(100, 101, 102))
	_, hit := barCache.Get(ctx, "AAPL", "2024-01-02", "2024-06-28")
	require.True(t, hit)
	_, miss := barCache.Get(ctx, "MSFT", "2024-01-02", "2024-06-28")
	require.False(t, miss)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/api/v1/admin/cache/stats"))

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data cache.BarCacheStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.Data.Hits)
	assert.Equal(t, int64(1), response.Data.Misses)
	assert.Equal(t, int64(1), response.Data.Sets)
}

func TestCacheEndpoints_InvalidateTicker(t *testing.T) {
	barCache := setupBarCache(t)
	router := setupCacheRouter(t, barCache)

	ctx := context.Background()
	barCache.Set(ctx, "AAPL", "2024-01-02", "2024-03-28", cachedBars(100, 101))
	barCache.Set(ctx, "AAPL", "2024-04-01", "2024-06-28", cachedBars(102, 103))
	barCache.Set(ctx, "MSFT", "2024-01-02", "2024-03-28", cachedBars(400, 401))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/v1/admin/cache/invalidate/AAPL"))

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Ticker      string `json:"ticker"`
		Invalidated int    `json:"invalidated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "AAPL", response.Ticker)
	assert.Equal(t, 2, response.Invalidated)

	_, found := barCache.Get(ctx, "AAPL", "2024-01-02", "2024-03-28")
	assert.False(t, found, "invalidated windows must be gone")
	_, found = barCache.Get(ctx, "MSFT", "2024-01-02", "2024-03-28")
	assert.True(t, found, "other tickers must survive invalidation")
}

func TestCacheEndpoints_ClearCache(t *testing.T) {
	barCache := setupBarCache(t)
	router := setupCacheRouter(t, barCache)

	ctx := context.Background()
	barCache.Set(ctx, "AAPL", "2024-01-02", "2024-06-28", cachedBars(100, 101))
	barCache.Set(ctx, "MSFT", "2024-01-02", "2024-06-28", cachedBars(400, 401))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/v1/admin/cache/clear"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bar cache cleared")

	_, found := barCache.Get(ctx, "AAPL", "2024-01-02", "2024-06-28")
	assert.False(t, found)
	_, found = barCache.Get(ctx, "MSFT", "2024-01-02", "2024-06-28")
	assert.False(t, found)
}

func TestCacheEndpoints_DisabledCache(t *testing.T) {
	router := setupCacheRouter(t, nil)

	targets := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/admin/cache/stats"},
		{http.MethodPost, "/api/v1/admin/cache/invalidate/AAPL"},
		{http.MethodPost, "/api/v1/admin/cache/clear"},
	}

	for _, target := range targets {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, adminRequest(target.method, target.path))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target.path)
		assert.Contains(t, w.Body.String(), "cache disabled")
	}
}
