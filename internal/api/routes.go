package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dmarkin/regimecast-ai-go/internal/api/handlers"
	"github.com/dmarkin/regimecast-ai-go/internal/cache"
	"github.com/dmarkin/regimecast-ai-go/internal/database"
	"github.com/dmarkin/regimecast-ai-go/internal/logging"
	"github.com/dmarkin/regimecast-ai-go/internal/middleware"
	"github.com/dmarkin/regimecast-ai-go/internal/services"
	"github.com/dmarkin/regimecast-ai-go/internal/telemetry"
)

// Dependencies carries the constructed services the route tree mounts.
// Optional members (Redis, BarCache, Logger) may be nil.
type Dependencies struct {
	DB            *database.PostgresDB
	Redis         *database.RedisClient
	BarCache      *cache.RedisBarCache
	MarketData    *services.MarketDataService
	Predictions   *services.PredictionService
	Visualization *services.VisualizationService
	Sentiment     *services.SentimentService
	Sizer         *services.ResourceSizer
	Logger        *logging.StandardLogger
	AdminAPIKey   string
}

// SetupRoutes configures middleware, health endpoints, and the /api/v1
// surface.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	adminMiddleware := middleware.NewAdminMiddleware(deps.AdminAPIKey)

	// Nil concrete pointers must not become non-nil interfaces.
	var dbPinger, redisPinger handlers.Pinger
	if deps.DB != nil {
		dbPinger = deps.DB
	}
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}
	var providerChecker handlers.ProviderChecker
	if deps.MarketData != nil {
		providerChecker = deps.MarketData
	}
	var statsSource handlers.SystemStatsSource
	if deps.Sizer != nil {
		statsSource = deps.Sizer
	}
	var barCacheAdmin handlers.BarCacheAdmin
	if deps.BarCache != nil {
		barCacheAdmin = deps.BarCache
	}

	healthHandler := handlers.NewHealthHandler(dbPinger, redisPinger, providerChecker, statsSource, telemetry.ServiceVersion)
	predictionHandler := handlers.NewPredictionHandler(deps.Predictions)
	visualizationHandler := handlers.NewVisualizationHandler(deps.Visualization)
	sentimentHandler := handlers.NewSentimentHandler(deps.Sentiment)
	cacheHandler := handlers.NewCacheHandler(barCacheAdmin)

	// Health endpoints stay outside the traced group so probes do not
	// flood the exporter.
	router.GET("/health", gin.WrapF(healthHandler.HealthCheck))
	router.HEAD("/health", gin.WrapF(healthHandler.HealthCheck))
	router.GET("/ready", gin.WrapF(healthHandler.ReadinessCheck))
	router.GET("/live", gin.WrapF(healthHandler.LivenessCheck))

	v1 := router.Group("/api/v1")
	v1.Use(otelgin.Middleware(telemetry.ServiceName))
	v1.Use(middleware.RequestID())
	if deps.Logger != nil {
		v1.Use(middleware.RequestLogger(deps.Logger))
	}
	{
		prediction := v1.Group("/prediction")
		{
			prediction.GET("/:ticker/predict", predictionHandler.GetPrediction)
			prediction.GET("/:ticker/history", predictionHandler.GetSignalHistory)
		}

		visualization := v1.Group("/visualization")
		{
			visualization.GET("/:ticker/chart", visualizationHandler.GetChart)
		}

		sentiment := v1.Group("/sentiment")
		{
			sentiment.GET("/:ticker/analyze", sentimentHandler.AnalyzeSentiment)
		}

		// Operational endpoints (require admin authentication)
		admin := v1.Group("/admin")
		admin.Use(adminMiddleware.RequireAdminAuth())
		{
			adminCache := admin.Group("/cache")
			{
				adminCache.GET("/stats", cacheHandler.GetCacheStats)
				adminCache.POST("/invalidate/:ticker", cacheHandler.InvalidateTicker)
				adminCache.POST("/clear", cacheHandler.ClearCache)
			}
		}
	}
}
