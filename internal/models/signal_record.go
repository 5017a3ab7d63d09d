package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalRecord is one persisted prediction outcome, written after each
// successful pipeline run and queryable per ticker.
type SignalRecord struct {
	ID             string          `json:"id" db:"id"`
	Ticker         string          `json:"ticker" db:"ticker"`
	Signal         string          `json:"signal" db:"signal"`
	Confidence     string          `json:"confidence" db:"confidence"`
	SignalDate     time.Time       `json:"signal_date" db:"signal_date"`
	SharpeRatio    decimal.Decimal `json:"sharpe_ratio" db:"sharpe_ratio"`
	MeanReturn     decimal.Decimal `json:"mean_return" db:"mean_return"`
	NClusters      int             `json:"n_clusters" db:"n_clusters"`
	MinClusterSize int             `json:"min_cluster_size" db:"min_cluster_size"`
	LookbackWindow int             `json:"lookback_window" db:"lookback_window"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// SentimentSummary is the processed news-sentiment payload for one ticker.
type SentimentSummary struct {
	OverallSentiment float64            `json:"overall_sentiment"`
	Category         string             `json:"sentiment_category"`
	NewsCount        int                `json:"news_count"`
	Trend            string             `json:"sentiment_trend"`
	History          map[string]float64 `json:"sentiment_history"`
	ScoreDefinitions map[string]string  `json:"sentiment_score_definition"`
}
