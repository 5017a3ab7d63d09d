package models

import (
	"time"
)

// SignalAction is the discrete trading recommendation for a bar.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalHold SignalAction = "HOLD"
	SignalSell SignalAction = "SELL"
)

// ConfidenceLevel qualifies how well-supported a signal is by its cluster's
// sample size and directional agreement.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// PredictionParams carries the validated request parameters for one
// prediction run.
type PredictionParams struct {
	Ticker         string    `json:"ticker"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	NClusters      int       `json:"n_clusters"`
	MinClusterSize int       `json:"min_cluster_size"`
	LookbackWindow int       `json:"lookback_window"`
}

// ClusterStatistics aggregates the forward-return behavior of one regime.
type ClusterStatistics struct {
	ClusterID   int     `json:"cluster"`
	MeanReturn  float64 `json:"mean_return"`
	Sharpe      float64 `json:"sharpe"`
	WinRate     float64 `json:"win_rate"`
	TotalPoints int     `json:"total_points"`
}

// CurrentPrediction is the signal derived from the most recent usable bar.
type CurrentPrediction struct {
	Signal     SignalAction    `json:"signal"`
	Confidence ConfidenceLevel `json:"confidence"`
	Date       string          `json:"date"`
}

// Overview wraps the headline prediction.
type Overview struct {
	CurrentPrediction CurrentPrediction `json:"current_prediction"`
}

// StrategyMetrics holds the aggregate performance of replayed signals.
type StrategyMetrics struct {
	Accuracy     float64 `json:"accuracy"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	AnnualReturn float64 `json:"annual_return"`
	WinRate      float64 `json:"win_rate"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

// StrategyPerformance pairs strategy metrics with human-readable explanations
// keyed by metric name.
type StrategyPerformance struct {
	Metrics      StrategyMetrics   `json:"metrics"`
	Explanations map[string]string `json:"explanations"`
}

// TechnicalIndicators reports the latest bar's indicator values together
// with qualitative interpretations.
type TechnicalIndicators struct {
	CurrentValues   map[string]float64 `json:"current_values"`
	Interpretations map[string]string  `json:"interpretations"`
}

// BuyHoldMetrics holds buy-and-hold performance over the identical window.
// Accuracy is undefined for a passive position and serialized as null.
type BuyHoldMetrics struct {
	Accuracy     *float64 `json:"accuracy"`
	SharpeRatio  float64  `json:"sharpe_ratio"`
	AnnualReturn float64  `json:"annual_return"`
}

// BaselineComparison contrasts the strategy against buy-and-hold.
type BaselineComparison struct {
	BuyHoldMetrics     BuyHoldMetrics `json:"buy_hold_metrics"`
	Recommendation     string         `json:"recommendation"`
	StrategyVsBaseline string         `json:"strategy_vs_baseline"`
}

// RecentPerformance holds strategy metrics restricted to the trailing window.
type RecentPerformance struct {
	Period  string          `json:"period"`
	Metrics StrategyMetrics `json:"metrics"`
}

// ClusterVizMetrics is the per-cluster metric subset exposed for charting.
type ClusterVizMetrics struct {
	Sharpe  float64 `json:"sharpe"`
	WinRate float64 `json:"win_rate"`
}

// ClusterVizEntry is one cluster's row in the clustering visualization.
type ClusterVizEntry struct {
	Cluster     int               `json:"cluster"`
	MeanReturn  float64           `json:"mean_return"`
	TotalPoints int               `json:"total_points"`
	Metrics     ClusterVizMetrics `json:"metrics"`
}

// ClusteringVisualization wraps the cluster rows.
type ClusteringVisualization struct {
	Data []ClusterVizEntry `json:"data"`
}

// PredictionResult is the full composed response for one prediction request.
// It is built once by the orchestrator and never mutated afterwards.
type PredictionResult struct {
	Ticker                  string                  `json:"ticker"`
	Overview                Overview                `json:"overview"`
	StrategyPerformance     StrategyPerformance     `json:"strategy_performance"`
	TechnicalIndicators     TechnicalIndicators     `json:"technical_indicators"`
	BaselineComparison      BaselineComparison      `json:"baseline_comparison"`
	RecentPerformance       RecentPerformance       `json:"recent_performance"`
	ClusteringVisualization ClusteringVisualization `json:"clustering_visualization"`
	GeneratedAt             time.Time               `json:"generated_at"`
}

// ChartSMA holds simple-moving-average overlays. Leading bars without full
// lookback are null.
type ChartSMA struct {
	SMA20 []*float64 `json:"sma20"`
	SMA50 []*float64 `json:"sma50"`
}

// ChartBollinger holds the Bollinger band overlays.
type ChartBollinger struct {
	Upper  []*float64 `json:"upper"`
	Middle []*float64 `json:"middle"`
	Lower  []*float64 `json:"lower"`
}

// ChartRSI holds the RSI sub-chart series.
type ChartRSI struct {
	Values []*float64 `json:"values"`
}

// ChartIndicators groups the chart overlay series.
type ChartIndicators struct {
	SMA       ChartSMA       `json:"sma"`
	Bollinger ChartBollinger `json:"bollinger"`
	RSI       ChartRSI       `json:"rsi"`
}

// ChartData is the candlestick payload for the visualization endpoint.
// OHLC rows are [open, high, low, close].
type ChartData struct {
	Dates      []string        `json:"dates"`
	OHLC       [][]float64     `json:"ohlc"`
	Volume     []float64       `json:"volume"`
	Indicators ChartIndicators `json:"indicators"`
}
