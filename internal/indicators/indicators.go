// Package indicators computes per-bar technical indicators from an OHLCV
// series. Every output series is aligned 1:1 with the input bars; indices
// before an indicator's lookback is satisfied hold NaN and are excluded from
// feature construction downstream.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

// TradingPeriodsPerYear is the annualization base for daily bars.
const TradingPeriodsPerYear = 252

// Params holds the indicator windows and multipliers.
type Params struct {
	SMAFast          int     `mapstructure:"sma_fast"`
	SMASlow          int     `mapstructure:"sma_slow"`
	BollingerWindow  int     `mapstructure:"bollinger_window"`
	BollingerMult    float64 `mapstructure:"bollinger_mult"`
	RSIPeriod        int     `mapstructure:"rsi_period"`
	VolatilityWindow int     `mapstructure:"volatility_window"`
	MomentumPeriod   int     `mapstructure:"momentum_period"`
	RelVolumeWindow  int     `mapstructure:"rel_volume_window"`
}

// DefaultParams returns the standard daily-bar parameterization.
func DefaultParams() Params {
	return Params{
		SMAFast:          20,
		SMASlow:          50,
		BollingerWindow:  20,
		BollingerMult:    2.0,
		RSIPeriod:        14,
		VolatilityWindow: 252,
		MomentumPeriod:   20,
		RelVolumeWindow:  20,
	}
}

// MinBars returns the smallest series length that yields at least one bar
// with every indicator defined.
func (p Params) MinBars() int {
	minBars := p.SMAFast
	for _, n := range []int{
		p.SMASlow,
		p.BollingerWindow,
		p.RSIPeriod + 1,
		p.VolatilityWindow + 1,
		p.MomentumPeriod + 1,
		p.RelVolumeWindow,
	} {
		if n > minBars {
			minBars = n
		}
	}
	return minBars
}

// Set holds all indicator series, each aligned to the input bars.
type Set struct {
	Return1D        []float64
	SMAFast         []float64
	SMASlow         []float64
	BollingerUpper  []float64
	BollingerMiddle []float64
	BollingerLower  []float64
	RSI             []float64
	Volatility      []float64
	GarmanKlass     []float64
	Momentum        []float64
	DollarVolume    []float64
	RelativeVolume  []float64
}

// ChartSet holds only the price-chart overlay series: moving averages,
// Bollinger bands and RSI.
type ChartSet struct {
	SMAFast         []float64
	SMASlow         []float64
	BollingerUpper  []float64
	BollingerMiddle []float64
	BollingerLower  []float64
	RSI             []float64
}

// ChartMinBars returns the smallest series length that yields at least one
// bar with every chart overlay defined.
func (p Params) ChartMinBars() int {
	minBars := p.SMAFast
	for _, n := range []int{p.SMASlow, p.BollingerWindow, p.RSIPeriod + 1} {
		if n > minBars {
			minBars = n
		}
	}
	return minBars
}

// relVolumeFloor replaces non-finite or vanishing relative-volume readings.
const relVolumeFloor = 1e-4

// Compute derives the full indicator set from bars. It is a pure function of
// its input: recomputing over the same series yields identical values.
func Compute(bars []models.Bar, p Params) (*Set, error) {
	if len(bars) < p.MinBars() {
		return nil, utils.NewInsufficientHistoryError(p.MinBars(), len(bars))
	}

	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	set := &Set{
		Return1D:       dailyReturns(closes),
		SMAFast:        smaSeries(closes, p.SMAFast),
		SMASlow:        smaSeries(closes, p.SMASlow),
		RSI:            wilderRSI(closes, p.RSIPeriod),
		GarmanKlass:    garmanKlass(bars),
		Momentum:       momentumSeries(closes, p.MomentumPeriod),
		DollarVolume:   dollarVolume(closes, volumes),
		RelativeVolume: relativeVolume(volumes, p.RelVolumeWindow),
	}

	set.BollingerMiddle, set.BollingerUpper, set.BollingerLower = bollingerBands(closes, p.BollingerWindow, p.BollingerMult)
	set.Volatility = annualizedVolatility(set.Return1D, p.VolatilityWindow)

	return set, nil
}

// ComputeChart derives only the chart overlays. It needs far less warmup
// than Compute because the volatility and momentum windows do not apply.
func ComputeChart(bars []models.Bar, p Params) (*ChartSet, error) {
	if len(bars) < p.ChartMinBars() {
		return nil, utils.NewInsufficientHistoryError(p.ChartMinBars(), len(bars))
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	set := &ChartSet{
		SMAFast: smaSeries(closes, p.SMAFast),
		SMASlow: smaSeries(closes, p.SMASlow),
		RSI:     wilderRSI(closes, p.RSIPeriod),
	}
	set.BollingerMiddle, set.BollingerUpper, set.BollingerLower = bollingerBands(closes, p.BollingerWindow, p.BollingerMult)
	return set, nil
}

// BollingerPosition returns %B per bar: where the close sits between the
// bands. A zero-width band maps to the neutral 0.5.
func (s *Set) BollingerPosition(closes []float64) []float64 {
	pos := make([]float64, len(closes))
	for i := range closes {
		upper, lower := s.BollingerUpper[i], s.BollingerLower[i]
		if math.IsNaN(upper) || math.IsNaN(lower) {
			pos[i] = math.NaN()
			continue
		}
		width := upper - lower
		if width == 0 {
			pos[i] = 0.5
			continue
		}
		pos[i] = (closes[i] - lower) / width
	}
	return pos
}

// dailyReturns computes close-to-close percentage returns. Index 0 is NaN.
func dailyReturns(closes []float64) []float64 {
	returns := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns[i] = closes[i]/closes[i-1] - 1
	}
	return returns
}

// smaSeries computes a simple moving average, left-padded with NaN so the
// output aligns with the input length.
func smaSeries(values []float64, period int) []float64 {
	if period <= 0 || period > len(values) {
		return nanSlice(len(values))
	}
	smaIndicator := trend.NewSmaWithPeriod[float64](period)
	computed := helper.ChanToSlice(smaIndicator.Compute(helper.SliceToChan(values)))
	return leftPad(computed, len(values))
}

// rollingStd computes the trailing sample standard deviation (n-1 divisor)
// over window bars. Indices before the window is filled hold NaN.
func rollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		var sum, mean float64
		valid := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				valid = false
				break
			}
			sum += values[j]
		}
		if !valid {
			continue
		}
		mean = sum / float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := values[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// bollingerBands computes middle (SMA), upper and lower bands.
func bollingerBands(closes []float64, window int, mult float64) (middle, upper, lower []float64) {
	middle = smaSeries(closes, window)
	std := rollingStd(closes, window)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(middle[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = middle[i] + mult*std[i]
		lower[i] = middle[i] - mult*std[i]
	}
	return middle, upper, lower
}

// wilderRSI computes the Relative Strength Index with Wilder smoothing: the
// seed averages are simple means of the first period gains/losses, then
// avg = (prev*(period-1) + current) / period. Degenerate cases resolve to
// the conventional fixed points instead of dividing by zero: both averages
// zero -> 50, zero losses -> 100, zero gains -> 0.
func wilderRSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period < 1 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	default:
		rs := avgGain / avgLoss
		return 100 - 100/(1+rs)
	}
}

// annualizedVolatility computes the rolling sample standard deviation of
// daily returns scaled by sqrt(252).
func annualizedVolatility(returns []float64, window int) []float64 {
	std := rollingStd(returns, window)
	for i := range std {
		if !math.IsNaN(std[i]) {
			std[i] *= math.Sqrt(TradingPeriodsPerYear)
		}
	}
	return std
}

// garmanKlass computes the per-bar Garman-Klass OHLC volatility estimate,
// annualized. The raw term can go slightly negative on unusual bars; it is
// clamped at zero before the square root.
func garmanKlass(bars []models.Bar) []float64 {
	out := nanSlice(len(bars))
	for i, b := range bars {
		if b.High <= 0 || b.Low <= 0 || b.Open <= 0 || b.Close <= 0 {
			continue
		}
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		term := 0.5*hl*hl - (2*math.Ln2-1)*co*co
		if term < 0 {
			term = 0
		}
		out[i] = math.Sqrt(term) * math.Sqrt(TradingPeriodsPerYear)
	}
	return out
}

// momentumSeries computes the percentage change over period bars.
func momentumSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period < 1 {
		return out
	}
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			continue
		}
		out[i] = closes[i]/closes[i-period] - 1
	}
	return out
}

// dollarVolume computes close*volume scaled to millions.
func dollarVolume(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = closes[i] * volumes[i] / 1e6
	}
	return out
}

// relativeVolume computes volume relative to its moving average. Non-finite
// readings (zero moving average) and values below the floor collapse to the
// floor so quiet sessions stay representable.
func relativeVolume(volumes []float64, window int) []float64 {
	ma := smaSeries(volumes, window)
	out := nanSlice(len(volumes))
	for i := range volumes {
		if math.IsNaN(ma[i]) {
			continue
		}
		if ma[i] == 0 {
			out[i] = relVolumeFloor
			continue
		}
		rv := volumes[i] / ma[i]
		if math.IsNaN(rv) || math.IsInf(rv, 0) || rv < relVolumeFloor {
			rv = relVolumeFloor
		}
		out[i] = rv
	}
	return out
}

// leftPad aligns a shortened indicator output to the source length by
// prefixing NaN for the consumed warm-up bars.
func leftPad(values []float64, length int) []float64 {
	if len(values) >= length {
		return values[len(values)-length:]
	}
	out := nanSlice(length)
	copy(out[length-len(values):], values)
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
