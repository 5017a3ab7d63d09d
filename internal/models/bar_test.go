package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBarSeries_Closes(t *testing.T) {
	series := &BarSeries{
		Ticker: "AAPL",
		Bars: []Bar{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 185.5},
			{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Close: 184.2},
			{Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Close: 181.9},
		},
	}

	assert.Equal(t, []float64{185.5, 184.2, 181.9}, series.Closes())
	assert.Equal(t, 3, series.Len())
}

func TestBarSeries_Empty(t *testing.T) {
	series := &BarSeries{Ticker: "AAPL"}

	assert.Empty(t, series.Closes())
	assert.Zero(t, series.Len())
}
