package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dmarkin/regimecast-ai-go/internal/indicators"
	"github.com/dmarkin/regimecast-ai-go/internal/signal"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	MarketData  MarketDataConfig  `mapstructure:"marketdata"`
	Prediction  PredictionConfig  `mapstructure:"prediction"`
	Indicators  indicators.Params `mapstructure:"indicators"`
	Sentiment   SentimentConfig   `mapstructure:"sentiment"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Retention   RetentionConfig   `mapstructure:"retention"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int    `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BarsTTL string `mapstructure:"bars_ttl"`
}

type MarketDataConfig struct {
	BaseURL string      `mapstructure:"base_url"`
	Timeout string      `mapstructure:"timeout"`
	Retry   RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxRetries    int     `mapstructure:"max_retries"`
	InitialDelay  string  `mapstructure:"initial_delay"`
	MaxDelay      string  `mapstructure:"max_delay"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

type PredictionConfig struct {
	NClusters      int               `mapstructure:"n_clusters"`
	MinClusterSize int               `mapstructure:"min_cluster_size"`
	LookbackWindow int               `mapstructure:"lookback_window"`
	Horizon        int               `mapstructure:"horizon"`
	Seed           int64             `mapstructure:"seed"`
	RecentWindow   int               `mapstructure:"recent_window"`
	Workers        int               `mapstructure:"workers"`
	Thresholds     signal.Thresholds `mapstructure:"thresholds"`
}

type SentimentConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key" json:"-" yaml:"-"`
	DaysBack int    `mapstructure:"days_back"`
	Limit    int    `mapstructure:"limit"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

type RetentionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	MaxAge   string `mapstructure:"max_age"`
	Interval string `mapstructure:"interval"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind secret-bearing environment variables explicitly
	if err := viper.BindEnv("sentiment.api_key", "ALPHAVANTAGE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ALPHAVANTAGE_API_KEY environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}
	if err := viper.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	durations := map[string]string{
		"server.read_timeout":            c.Server.ReadTimeout,
		"server.write_timeout":           c.Server.WriteTimeout,
		"cache.bars_ttl":                 c.Cache.BarsTTL,
		"marketdata.timeout":             c.MarketData.Timeout,
		"marketdata.retry.initial_delay": c.MarketData.Retry.InitialDelay,
		"marketdata.retry.max_delay":     c.MarketData.Retry.MaxDelay,
		"retention.max_age":              c.Retention.MaxAge,
		"retention.interval":             c.Retention.Interval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	p := c.Prediction
	if p.NClusters < 2 || p.NClusters > 10 {
		return fmt.Errorf("prediction.n_clusters must be between 2 and 10, got %d", p.NClusters)
	}
	if p.MinClusterSize < 3 {
		return fmt.Errorf("prediction.min_cluster_size must be at least 3, got %d", p.MinClusterSize)
	}
	if p.LookbackWindow < 60 {
		return fmt.Errorf("prediction.lookback_window must be at least 60, got %d", p.LookbackWindow)
	}
	if p.Horizon < 1 {
		return fmt.Errorf("prediction.horizon must be at least 1, got %d", p.Horizon)
	}

	return nil
}

// Duration parses s, falling back when s is empty or malformed. Config
// values are validated at load time, so the fallback mostly serves
// zero-value structs in tests.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.endpoint", "")
	viper.SetDefault("telemetry.insecure", true)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "regimecast")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_conns", 10)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Cache
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.bars_ttl", "15m")

	// Market data provider
	viper.SetDefault("marketdata.base_url", "http://localhost:3001")
	viper.SetDefault("marketdata.timeout", "30s")
	viper.SetDefault("marketdata.retry.max_retries", 3)
	viper.SetDefault("marketdata.retry.initial_delay", "500ms")
	viper.SetDefault("marketdata.retry.max_delay", "5s")
	viper.SetDefault("marketdata.retry.backoff_factor", 2.0)

	// Prediction pipeline
	viper.SetDefault("prediction.n_clusters", 5)
	viper.SetDefault("prediction.min_cluster_size", 5)
	viper.SetDefault("prediction.lookback_window", 252)
	viper.SetDefault("prediction.horizon", 1)
	viper.SetDefault("prediction.seed", 42)
	viper.SetDefault("prediction.recent_window", 63)
	viper.SetDefault("prediction.workers", 0)
	viper.SetDefault("prediction.thresholds.sharpe_buy", 0.2)
	viper.SetDefault("prediction.thresholds.sharpe_sell", -0.2)
	viper.SetDefault("prediction.thresholds.high_samples", 30)
	viper.SetDefault("prediction.thresholds.medium_samples", 15)

	// Indicator windows
	viper.SetDefault("indicators.sma_fast", 20)
	viper.SetDefault("indicators.sma_slow", 50)
	viper.SetDefault("indicators.bollinger_window", 20)
	viper.SetDefault("indicators.bollinger_mult", 2.0)
	viper.SetDefault("indicators.rsi_period", 14)
	viper.SetDefault("indicators.volatility_window", 252)
	viper.SetDefault("indicators.momentum_period", 20)
	viper.SetDefault("indicators.rel_volume_window", 20)

	// Sentiment provider
	viper.SetDefault("sentiment.base_url", "https://www.alphavantage.co/query")
	viper.SetDefault("sentiment.api_key", "")
	viper.SetDefault("sentiment.days_back", 30)
	viper.SetDefault("sentiment.limit", 1000)

	// Telegram notifier
	viper.SetDefault("telegram.enabled", false)
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Signal history retention
	viper.SetDefault("retention.enabled", true)
	viper.SetDefault("retention.max_age", "2160h")
	viper.SetDefault("retention.interval", "24h")
}
