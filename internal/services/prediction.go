package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmarkin/regimecast-ai-go/internal/backtest"
	"github.com/dmarkin/regimecast-ai-go/internal/cluster"
	"github.com/dmarkin/regimecast-ai-go/internal/config"
	"github.com/dmarkin/regimecast-ai-go/internal/database"
	"github.com/dmarkin/regimecast-ai-go/internal/features"
	"github.com/dmarkin/regimecast-ai-go/internal/indicators"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/scoring"
	"github.com/dmarkin/regimecast-ai-go/internal/signal"
	"github.com/dmarkin/regimecast-ai-go/internal/telemetry"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

// warmupPad is the extra trading-day allowance fetched before the analysis
// window so the longest indicator lookback is satisfied at the window start.
const warmupPad = 50

// notifyTimeout bounds the detached alert push after a prediction completes.
const notifyTimeout = 10 * time.Second

// Notifier pushes completed high-confidence signals to an external channel.
type Notifier interface {
	NotifySignal(ctx context.Context, ticker string, prediction models.CurrentPrediction, stats models.ClusterStatistics) error
}

// PredictionService orchestrates the full pipeline: fetch, indicators,
// features, clustering, scoring, signal, backtest, and response composition.
// The CPU-bound stages run on the worker pool; the fetch stays on the caller
// goroutine where the single-flight group deduplicates it.
type PredictionService struct {
	marketData *MarketDataService
	repo       *database.SignalRepository
	notifier   Notifier
	pool       *WorkerPool
	cfg        *config.Config
	logger     *logrus.Logger
}

// NewPredictionService creates the orchestrator. repo and notifier may be nil
// when persistence or alerting is not configured.
func NewPredictionService(
	marketData *MarketDataService,
	repo *database.SignalRepository,
	notifier Notifier,
	pool *WorkerPool,
	cfg *config.Config,
	logger *logrus.Logger,
) *PredictionService {
	return &PredictionService{
		marketData: marketData,
		repo:       repo,
		notifier:   notifier,
		pool:       pool,
		cfg:        cfg,
		logger:     logger,
	}
}

// DefaultParams returns request parameters seeded from configuration for
// fields the caller left unset.
func (s *PredictionService) DefaultParams(ticker string) models.PredictionParams {
	return models.PredictionParams{
		Ticker:         ticker,
		NClusters:      s.cfg.Prediction.NClusters,
		MinClusterSize: s.cfg.Prediction.MinClusterSize,
		LookbackWindow: s.cfg.Prediction.LookbackWindow,
	}
}

// ValidateParams enforces the allowed parameter ranges before any work runs.
func ValidateParams(params models.PredictionParams) error {
	if strings.TrimSpace(params.Ticker) == "" {
		return utils.NewInvalidParameterError("ticker must not be empty")
	}
	if params.NClusters < 2 || params.NClusters > 10 {
		return utils.NewInvalidParameterErrorf("n_clusters must be between 2 and 10, got %d", params.NClusters)
	}
	if params.MinClusterSize < 3 {
		return utils.NewInvalidParameterErrorf("min_cluster_size must be at least 3, got %d", params.MinClusterSize)
	}
	if params.LookbackWindow < 60 {
		return utils.NewInvalidParameterErrorf("lookback_window must be at least 60, got %d", params.LookbackWindow)
	}
	if !params.StartDate.IsZero() && !params.EndDate.IsZero() && params.StartDate.After(params.EndDate) {
		return utils.NewInvalidParameterError("start_date must not be after end_date")
	}
	return nil
}

// Predict runs one prediction request end to end and returns the composed,
// immutable result.
func (s *PredictionService) Predict(ctx context.Context, params models.PredictionParams) (*models.PredictionResult, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	params = s.applyDateDefaults(params)

	tracer := telemetry.GetPipelineTracer()
	ctx, span := tracer.Start(ctx, "prediction.predict")
	defer span.End()

	bars, err := s.fetchWithWarmup(ctx, tracer, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	value, err := s.pool.Submit(ctx, "predict:"+params.Ticker, func(jobCtx context.Context) (interface{}, error) {
		return s.runPipeline(jobCtx, bars, params)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := value.(*pipelineOutput)

	s.persistSignal(ctx, params, out)
	s.maybeNotify(params.Ticker, out)

	return out.result, nil
}

// History returns the most recent persisted signals for a ticker.
func (s *PredictionService) History(ctx context.Context, ticker string, limit int) ([]models.SignalRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListByTicker(ctx, ticker, limit)
}

// applyDateDefaults fills the analysis window: end defaults to today, start
// to one year before end.
func (s *PredictionService) applyDateDefaults(params models.PredictionParams) models.PredictionParams {
	if params.EndDate.IsZero() {
		params.EndDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if params.StartDate.IsZero() {
		params.StartDate = params.EndDate.AddDate(0, 0, -365)
	}
	return params
}

// fetchWithWarmup pulls bars from warmup-adjusted start so indicators are
// defined from the first analysis-window bar. Trading-day lookbacks are
// scaled to calendar days at 7/5.
func (s *PredictionService) fetchWithWarmup(ctx context.Context, tracer trace.Tracer, params models.PredictionParams) ([]models.Bar, error) {
	warmupDays := (s.cfg.Indicators.MinBars() + warmupPad) * 7 / 5
	calcStart := params.StartDate.AddDate(0, 0, -warmupDays)

	ctx, span := tracer.Start(ctx, "prediction.fetch")
	defer span.End()

	bars, err := s.marketData.GetBars(ctx, params.Ticker, calcStart, params.EndDate)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return bars, nil
}

// pipelineOutput pairs the composed response with the statistics of the
// cluster that produced the current signal, which persistence and alerting
// need but the response does not expose directly.
type pipelineOutput struct {
	result       *models.PredictionResult
	currentStats models.ClusterStatistics
}

// runPipeline executes the CPU-bound stages over an already-fetched series.
func (s *PredictionService) runPipeline(ctx context.Context, bars []models.Bar, params models.PredictionParams) (*pipelineOutput, error) {
	tracer := telemetry.GetPipelineTracer()

	set, err := s.computeIndicators(ctx, tracer, bars)
	if err != nil {
		return nil, err
	}

	matrix, err := s.buildFeatures(ctx, tracer, bars, set, params)
	if err != nil {
		return nil, err
	}

	clusters, err := s.runClustering(ctx, tracer, matrix, params)
	if err != nil {
		return nil, err
	}

	horizon := s.cfg.Prediction.Horizon
	barIndices := matrix.BarIndices()

	_, scoreSpan := tracer.Start(ctx, "prediction.score")
	outcome := scoring.Score(bars, barIndices, clusters.Assignments, clusters.K, horizon)
	scoreSpan.End()

	decisions := signal.GenerateAll(outcome.Stats, s.cfg.Prediction.Thresholds)

	_, btSpan := tracer.Start(ctx, "prediction.backtest")
	replay := backtest.Run(outcome.ForwardReturns, clusters.Assignments, decisions, horizon, s.cfg.Prediction.RecentWindow)
	btSpan.End()

	latest := matrix.Vectors[len(matrix.Vectors)-1]
	currentCluster := clusters.Assignments[len(clusters.Assignments)-1]
	current := models.CurrentPrediction{
		Signal:     decisions[currentCluster].Action,
		Confidence: decisions[currentCluster].Confidence,
		Date:       bars[latest.BarIndex].Date.Format("2006-01-02"),
	}

	result := &models.PredictionResult{
		Ticker: params.Ticker,
		Overview: models.Overview{
			CurrentPrediction: current,
		},
		StrategyPerformance: models.StrategyPerformance{
			Metrics:      replay.Strategy,
			Explanations: metricExplanations(),
		},
		TechnicalIndicators: models.TechnicalIndicators{
			CurrentValues:   currentIndicatorValues(bars, set, latest.BarIndex),
			Interpretations: interpretIndicators(bars, set, latest.BarIndex),
		},
		BaselineComparison: models.BaselineComparison{
			BuyHoldMetrics:     replay.BuyHold,
			Recommendation:     replay.Recommendation,
			StrategyVsBaseline: replay.Verdict,
		},
		RecentPerformance:       replay.Recent,
		ClusteringVisualization: clusteringVisualization(outcome.Stats),
		GeneratedAt:             time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"ticker":     params.Ticker,
		"signal":     current.Signal,
		"confidence": current.Confidence,
		"clusters":   clusters.K,
	}).Info("Prediction pipeline completed")

	return &pipelineOutput{
		result:       result,
		currentStats: outcome.Stats[currentCluster],
	}, nil
}

func (s *PredictionService) computeIndicators(ctx context.Context, tracer trace.Tracer, bars []models.Bar) (*indicators.Set, error) {
	_, span := tracer.Start(ctx, "prediction.indicators")
	defer span.End()

	set, err := indicators.Compute(bars, s.cfg.Indicators)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return set, nil
}

func (s *PredictionService) buildFeatures(ctx context.Context, tracer trace.Tracer, bars []models.Bar, set *indicators.Set, params models.PredictionParams) (*features.Matrix, error) {
	_, span := tracer.Start(ctx, "prediction.features")
	defer span.End()

	matrix, err := features.Build(bars, set, params.StartDate, params.EndDate, params.LookbackWindow)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return matrix, nil
}

func (s *PredictionService) runClustering(ctx context.Context, tracer trace.Tracer, matrix *features.Matrix, params models.PredictionParams) (*cluster.Result, error) {
	_, span := tracer.Start(ctx, "prediction.cluster")
	defer span.End()

	result, err := cluster.Run(matrix.Rows(), cluster.Config{
		K:              params.NClusters,
		MinClusterSize: params.MinClusterSize,
		Seed:           s.cfg.Prediction.Seed,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// persistSignal writes one history row. Persistence failure does not fail the
// prediction that already succeeded.
func (s *PredictionService) persistSignal(ctx context.Context, params models.PredictionParams, out *pipelineOutput) {
	if s.repo == nil {
		return
	}

	current := out.result.Overview.CurrentPrediction
	record := database.NewRecord(params.Ticker, params, current, out.currentStats.Sharpe, out.currentStats.MeanReturn)
	if _, err := s.repo.Insert(ctx, record); err != nil {
		s.logger.WithError(err).WithField("ticker", params.Ticker).Warn("Failed to persist prediction signal")
	}
}

// maybeNotify pushes High-confidence BUY/SELL signals on a detached context
// so a slow alert channel cannot delay the response.
func (s *PredictionService) maybeNotify(ticker string, out *pipelineOutput) {
	if s.notifier == nil {
		return
	}
	current := out.result.Overview.CurrentPrediction
	if current.Confidence != models.ConfidenceHigh || current.Signal == models.SignalHold {
		return
	}

	stats := out.currentStats
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifySignal(ctx, ticker, current, stats); err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to push signal alert")
		}
	}()
}

func clusteringVisualization(stats []models.ClusterStatistics) models.ClusteringVisualization {
	entries := make([]models.ClusterVizEntry, len(stats))
	for i, st := range stats {
		entries[i] = models.ClusterVizEntry{
			Cluster:     st.ClusterID,
			MeanReturn:  st.MeanReturn,
			TotalPoints: st.TotalPoints,
			Metrics: models.ClusterVizMetrics{
				Sharpe:  st.Sharpe,
				WinRate: st.WinRate,
			},
		}
	}
	return models.ClusteringVisualization{Data: entries}
}

// metricExplanations describes each strategy metric in plain language, keyed
// by metric name.
func metricExplanations() map[string]string {
	caser := cases.Title(language.English)
	texts := map[string]string{
		"accuracy":      "fraction of traded bars where the signal direction matched the next move",
		"sharpe_ratio":  "mean daily strategy return over its volatility, annualized",
		"annual_return": "mean daily strategy return compounded over a trading year",
		"win_rate":      "fraction of traded bars that produced a positive strategy return",
		"max_drawdown":  "largest peak-to-trough decline of the strategy equity curve",
	}

	explanations := make(map[string]string, len(texts))
	for key, text := range texts {
		displayName := caser.String(strings.ReplaceAll(key, "_", " "))
		explanations[key] = fmt.Sprintf("%s: %s.", displayName, text)
	}
	return explanations
}

// currentIndicatorValues snapshots the latest usable bar's indicators.
// Dimensions without full lookback at that bar are omitted rather than
// serialized as NaN.
func currentIndicatorValues(bars []models.Bar, set *indicators.Set, idx int) map[string]float64 {
	values := make(map[string]float64)
	putFinite(values, "close", bars[idx].Close)
	putFinite(values, "rsi", set.RSI[idx])
	putFinite(values, "sma_20", set.SMAFast[idx])
	putFinite(values, "sma_50", set.SMASlow[idx])
	putFinite(values, "bollinger_upper", set.BollingerUpper[idx])
	putFinite(values, "bollinger_middle", set.BollingerMiddle[idx])
	putFinite(values, "bollinger_lower", set.BollingerLower[idx])
	putFinite(values, "bb_position", bollingerPositionAt(bars, set, idx))
	putFinite(values, "volatility", set.Volatility[idx])
	putFinite(values, "momentum_20d", set.Momentum[idx])
	return values
}

func putFinite(m map[string]float64, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m[key] = v
}

func bollingerPositionAt(bars []models.Bar, set *indicators.Set, idx int) float64 {
	upper, lower := set.BollingerUpper[idx], set.BollingerLower[idx]
	if math.IsNaN(upper) || math.IsNaN(lower) {
		return math.NaN()
	}
	width := upper - lower
	if width == 0 {
		return 0.5
	}
	return (bars[idx].Close - lower) / width
}

// interpretIndicators renders qualitative readings of the latest bar.
func interpretIndicators(bars []models.Bar, set *indicators.Set, idx int) map[string]string {
	out := make(map[string]string)
	close := bars[idx].Close

	if rsi := set.RSI[idx]; !math.IsNaN(rsi) {
		switch {
		case rsi > 70:
			out["rsi"] = "Overbought: RSI above 70"
		case rsi < 30:
			out["rsi"] = "Oversold: RSI below 30"
		default:
			out["rsi"] = "Neutral: RSI between 30 and 70"
		}
	}

	smaFast, smaSlow := set.SMAFast[idx], set.SMASlow[idx]
	if !math.IsNaN(smaFast) && !math.IsNaN(smaSlow) {
		switch {
		case close > smaFast && smaFast > smaSlow:
			out["trend"] = "Uptrend: price above both moving averages"
		case close < smaFast && smaFast < smaSlow:
			out["trend"] = "Downtrend: price below both moving averages"
		default:
			out["trend"] = "Mixed: price between its moving averages"
		}
	}

	if pos := bollingerPositionAt(bars, set, idx); !math.IsNaN(pos) {
		switch {
		case pos > 1:
			out["bollinger"] = "Price above the upper band"
		case pos < 0:
			out["bollinger"] = "Price below the lower band"
		case pos >= 0.8:
			out["bollinger"] = "Price near the upper band"
		case pos <= 0.2:
			out["bollinger"] = "Price near the lower band"
		default:
			out["bollinger"] = "Price inside the bands"
		}
	}

	if vol := set.Volatility[idx]; !math.IsNaN(vol) {
		switch {
		case vol > 0.4:
			out["volatility"] = fmt.Sprintf("High annualized volatility (%.0f%%)", vol*100)
		case vol > 0.2:
			out["volatility"] = fmt.Sprintf("Moderate annualized volatility (%.0f%%)", vol*100)
		default:
			out["volatility"] = fmt.Sprintf("Low annualized volatility (%.0f%%)", vol*100)
		}
	}

	if mom := set.Momentum[idx]; !math.IsNaN(mom) {
		switch {
		case mom > 0:
			out["momentum_20d"] = "Positive momentum over the past 20 bars"
		case mom < 0:
			out["momentum_20d"] = "Negative momentum over the past 20 bars"
		default:
			out["momentum_20d"] = "Flat momentum over the past 20 bars"
		}
	}

	return out
}
