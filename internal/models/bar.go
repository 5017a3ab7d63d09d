package models

import (
	"time"
)

// Bar represents one daily OHLCV bar. Series are ordered ascending by date
// with unique dates; calendar gaps are tolerated and never filled.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// BarSeries is an ordered slice of bars for one ticker.
type BarSeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Closes extracts the close-price series.
func (s *BarSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Len returns the number of bars in the series.
func (s *BarSeries) Len() int {
	return len(s.Bars)
}
