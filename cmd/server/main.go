package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dmarkin/regimecast-ai-go/internal/api"
	"github.com/dmarkin/regimecast-ai-go/internal/cache"
	"github.com/dmarkin/regimecast-ai-go/internal/config"
	"github.com/dmarkin/regimecast-ai-go/internal/database"
	"github.com/dmarkin/regimecast-ai-go/internal/logging"
	"github.com/dmarkin/regimecast-ai-go/internal/services"
	"github.com/dmarkin/regimecast-ai-go/internal/telemetry"
	"github.com/dmarkin/regimecast-ai-go/pkg/marketdata"
)

// main delegates to run so every startup failure exits through one path.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

// run orchestrates the startup sequence: configuration, telemetry, storage,
// services, and the HTTP server, then blocks until a termination signal and
// shuts down gracefully.
func run() error {
	// Load .env before config so local development picks up secrets.
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogrus(cfg.Logging.Level, cfg.Logging.Format)
	stdLogger := newStandardLogger(cfg)

	tracing, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(flushCtx); err != nil {
			logger.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Redis is optional: without it the server runs uncached.
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis - continuing without cache")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var barCache *cache.RedisBarCache
	if cfg.Cache.Enabled && redisClient != nil {
		barCache = cache.NewRedisBarCache(redisClient.Client, config.Duration(cfg.Cache.BarsTTL, 15*time.Minute))
	}

	provider := marketdata.NewClient(cfg.MarketData.BaseURL, config.Duration(cfg.MarketData.Timeout, 30*time.Second))
	defer func() {
		if err := provider.Close(); err != nil {
			logger.WithError(err).Warn("Error closing market data client")
		}
	}()

	marketData := services.NewMarketDataService(provider, barCache, logger, retryPolicyFromConfig(cfg.MarketData.Retry))

	sizer := services.NewResourceSizer(logger)
	pool := services.NewWorkerPool(sizer.WorkerCount(cfg.Prediction.Workers), logger)
	pool.Start()
	defer pool.Stop()

	// A disabled Telegram config yields a nil notifier; the guard keeps the
	// interface nil rather than wrapping a nil pointer.
	var notifier services.Notifier
	telegramNotifier, err := services.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram notifier: %w", err)
	}
	if telegramNotifier != nil {
		notifier = telegramNotifier
		logger.Info("Telegram signal alerts enabled")
	}

	repo := database.NewSignalRepository(db.Pool)
	predictions := services.NewPredictionService(marketData, repo, notifier, pool, cfg, logger)
	visualization := services.NewVisualizationService(marketData, cfg, logger)
	sentiment := services.NewSentimentService(cfg.Sentiment, logger)

	if cfg.Retention.Enabled {
		retention := services.NewRetentionService(repo,
			config.Duration(cfg.Retention.MaxAge, 90*24*time.Hour),
			config.Duration(cfg.Retention.Interval, 24*time.Hour),
			logger)
		retention.Start()
		defer retention.Stop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.Dependencies{
		DB:            db,
		Redis:         redisClient,
		BarCache:      barCache,
		MarketData:    marketData,
		Predictions:   predictions,
		Visualization: visualization,
		Sentiment:     sentiment,
		Sizer:         sizer,
		Logger:        stdLogger,
		AdminAPIKey:   os.Getenv("ADMIN_API_KEY"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		stdLogger.LogStartup(telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stdLogger.LogShutdown(telemetry.ServiceName, "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// newStandardLogger routes structured logs to the OTLP collector when one is
// configured and to stdout JSON otherwise.
func newStandardLogger(cfg *config.Config) *logging.StandardLogger {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint != "" {
		return logging.NewStandardOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       cfg.Telemetry.Endpoint,
			ServiceName:    telemetry.ServiceName,
			ServiceVersion: telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			LogLevel:       cfg.Logging.Level,
		})
	}
	return logging.NewStandardLogger(cfg.Logging.Level)
}

// retryPolicyFromConfig converts the duration strings validated at load time
// into the policy the market-data fetch path applies.
func retryPolicyFromConfig(cfg config.RetryConfig) services.RetryPolicy {
	return services.RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  config.Duration(cfg.InitialDelay, 500*time.Millisecond),
		MaxDelay:      config.Duration(cfg.MaxDelay, 5*time.Second),
		BackoffFactor: cfg.BackoffFactor,
		JitterEnabled: true,
	}
}
