package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmarkin/regimecast-ai-go/internal/config"
	"github.com/dmarkin/regimecast-ai-go/internal/indicators"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

// chartDefaultSpanDays is the window length when the caller omits start_date.
const chartDefaultSpanDays = 30

// VisualizationService assembles the candlestick chart payload: OHLCV rows
// plus moving-average, Bollinger and RSI overlays.
type VisualizationService struct {
	marketData *MarketDataService
	cfg        *config.Config
	logger     *logrus.Logger
}

// NewVisualizationService creates the chart data service.
func NewVisualizationService(marketData *MarketDataService, cfg *config.Config, logger *logrus.Logger) *VisualizationService {
	return &VisualizationService{
		marketData: marketData,
		cfg:        cfg,
		logger:     logger,
	}
}

// ChartData builds the chart payload for [start, end]. A zero end defaults to
// today, a zero start to end minus 30 days. Bars before start are fetched
// only to warm the overlays up and are sliced off the output, so the first
// visible bar already carries fully formed indicators when enough history
// exists upstream.
func (s *VisualizationService) ChartData(ctx context.Context, ticker string, start, end time.Time) (*models.ChartData, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, utils.NewInvalidParameterError("ticker must not be empty")
	}
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -chartDefaultSpanDays)
	}
	if start.After(end) {
		return nil, utils.NewInvalidParameterError("start_date must not be after end_date")
	}

	warmupDays := (s.cfg.Indicators.ChartMinBars() + warmupPad) * 7 / 5
	fetchStart := start.AddDate(0, 0, -warmupDays)

	bars, err := s.marketData.GetBars(ctx, ticker, fetchStart, end)
	if err != nil {
		return nil, err
	}

	set, err := indicators.ComputeChart(bars, s.cfg.Indicators)
	if err != nil {
		return nil, err
	}

	lo := 0
	for lo < len(bars) && bars[lo].Date.Before(start) {
		lo++
	}
	hi := len(bars)
	for hi > lo && bars[hi-1].Date.After(end) {
		hi--
	}
	window := bars[lo:hi]
	if len(window) == 0 {
		return nil, utils.NewDataUnavailableError(ticker)
	}

	chart := &models.ChartData{
		Dates:  make([]string, len(window)),
		OHLC:   make([][]float64, len(window)),
		Volume: make([]float64, len(window)),
		Indicators: models.ChartIndicators{
			SMA: models.ChartSMA{
				SMA20: nullableSeries(set.SMAFast[lo:hi]),
				SMA50: nullableSeries(set.SMASlow[lo:hi]),
			},
			Bollinger: models.ChartBollinger{
				Upper:  nullableSeries(set.BollingerUpper[lo:hi]),
				Middle: nullableSeries(set.BollingerMiddle[lo:hi]),
				Lower:  nullableSeries(set.BollingerLower[lo:hi]),
			},
			RSI: models.ChartRSI{
				Values: nullableSeries(set.RSI[lo:hi]),
			},
		},
	}
	for i, b := range window {
		chart.Dates[i] = b.Date.Format("2006-01-02")
		chart.OHLC[i] = []float64{b.Open, b.High, b.Low, b.Close}
		chart.Volume[i] = b.Volume
	}

	s.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"bars":   len(window),
	}).Debug("Assembled chart payload")

	return chart, nil
}

// nullableSeries maps indicator values onto pointers, turning warm-up NaN
// entries into JSON null instead of an unserializable NaN.
func nullableSeries(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		value := v
		out[i] = &value
	}
	return out
}
