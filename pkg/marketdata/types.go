package marketdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HealthResponse represents the provider sidecar's health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
	Version   string    `json:"version,omitempty"`
}

// ErrorResponse represents an error payload from the provider sidecar
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// DailyBar is one day of OHLCV data as served by the provider. Prices come
// across the wire as decimals so nothing is lost before the pipeline decides
// how to round.
type DailyBar struct {
	Date     string          `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adj_close,omitempty"`
	Volume   decimal.Decimal `json:"volume"`
}

// DailyBarsResponse represents the response from /api/v1/daily/{ticker}
type DailyBarsResponse struct {
	Ticker    string     `json:"ticker"`
	Bars      []DailyBar `json:"bars"`
	Count     int        `json:"count"`
	Timestamp time.Time  `json:"timestamp"`
}

// StatusError is returned when the provider answers with a non-2xx status.
// Callers classify it by code: 404 means the ticker is unknown, 429 and 5xx
// are worth retrying.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("market data provider error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the provider said the resource does not exist.
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == 404
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
