package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/dmarkin/regimecast-ai-go/internal/cache"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
	"github.com/dmarkin/regimecast-ai-go/pkg/marketdata"
)

// MarketDataService fetches daily bar series through the provider client with
// a Redis read-through cache in front. Concurrent requests for the same
// (ticker, start, end) window collapse into one provider call; callers with
// different clustering parameters still share the fetch because the key
// carries only the window.
type MarketDataService struct {
	provider marketdata.Provider
	cache    *cache.RedisBarCache
	logger   *logrus.Logger
	policy   RetryPolicy
	group    singleflight.Group
}

// NewMarketDataService creates a market data service. The cache may be nil
// when caching is disabled.
func NewMarketDataService(provider marketdata.Provider, barCache *cache.RedisBarCache, logger *logrus.Logger, policy RetryPolicy) *MarketDataService {
	return &MarketDataService{
		provider: provider,
		cache:    barCache,
		logger:   logger,
		policy:   policy,
	}
}

// GetBars returns the daily bars for ticker over [start, end], consulting the
// cache first and deduplicating in-flight fetches for the same window.
func (s *MarketDataService) GetBars(ctx context.Context, ticker string, start, end time.Time) ([]models.Bar, error) {
	startStr := start.Format(marketdata.DateFormat)
	endStr := end.Format(marketdata.DateFormat)
	key := fmt.Sprintf("%s:%s:%s", ticker, startStr, endStr)

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		if s.cache != nil {
			if bars, ok := s.cache.Get(ctx, ticker, startStr, endStr); ok {
				s.logger.WithFields(logrus.Fields{
					"ticker": ticker,
					"start":  startStr,
					"end":    endStr,
				}).Debug("Bar cache hit")
				return bars, nil
			}
		}

		bars, err := s.fetch(ctx, ticker, start, end)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			s.cache.Set(ctx, ticker, startStr, endStr, bars)
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		s.logger.WithFields(logrus.Fields{
			"ticker": ticker,
			"window": key,
		}).Debug("Deduplicated concurrent bar fetch")
	}

	return v.([]models.Bar), nil
}

// CheckProvider reports whether the upstream daily-bars service is reachable.
func (s *MarketDataService) CheckProvider(ctx context.Context) error {
	_, err := s.provider.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("market data provider unreachable: %w", err)
	}
	return nil
}

// fetch calls the provider with bounded-backoff retry and maps transport
// outcomes onto the service error taxonomy.
func (s *MarketDataService) fetch(ctx context.Context, ticker string, start, end time.Time) ([]models.Bar, error) {
	var resp *marketdata.DailyBarsResponse
	err := ExecuteWithRetry(ctx, s.logger, "marketdata_fetch", s.policy, retryableFetchError, func() error {
		r, err := s.provider.GetDailyBars(ctx, ticker, start, end)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var statusErr *marketdata.StatusError
		if errors.As(err, &statusErr) && statusErr.IsNotFound() {
			return nil, utils.NewDataUnavailableError(ticker)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, utils.NewProviderError(fmt.Sprintf("failed to fetch daily bars for %s", ticker), err)
	}

	bars := s.convertBars(ticker, resp)
	if len(bars) == 0 {
		return nil, utils.NewDataUnavailableError(ticker)
	}
	return bars, nil
}

// retryableFetchError treats rate limits, upstream 5xx and transport-level
// failures as transient. A 404 or other client error reproduces on retry.
func retryableFetchError(err error) bool {
	var statusErr *marketdata.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// convertBars maps provider rows onto the internal bar type, dropping rows
// whose date does not parse.
func (s *MarketDataService) convertBars(ticker string, resp *marketdata.DailyBarsResponse) []models.Bar {
	bars := make([]models.Bar, 0, len(resp.Bars))
	for _, row := range resp.Bars {
		date, err := time.Parse(marketdata.DateFormat, row.Date)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"ticker": ticker,
				"date":   row.Date,
			}).Warn("Skipping bar with unparseable date")
			continue
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   row.Open.InexactFloat64(),
			High:   row.High.InexactFloat64(),
			Low:    row.Low.InexactFloat64(),
			Close:  row.Close.InexactFloat64(),
			Volume: row.Volume.InexactFloat64(),
		})
	}
	return bars
}
