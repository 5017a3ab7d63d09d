// Package backtest replays cluster signals over the scored history and
// compares the resulting strategy against a buy-and-hold baseline.
package backtest

import (
	"fmt"
	"math"

	"github.com/dmarkin/regimecast-ai-go/internal/indicators"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/signal"
)

// DefaultRecentWindow is the trailing scored-bar count for the recent
// performance block, roughly one quarter of trading days.
const DefaultRecentWindow = 63

// Verdict values for the strategy-versus-baseline comparison.
const (
	VerdictOutperform   = "outperform"
	VerdictUnderperform = "underperform"
	VerdictComparable   = "comparable"
)

// Result bundles everything the replay produces.
type Result struct {
	Strategy       models.StrategyMetrics
	BuyHold        models.BuyHoldMetrics
	Verdict        string
	Recommendation string
	Recent         models.RecentPerformance
}

// Run replays the per-cluster decisions across every scored bar. forward
// aligns with assignments; NaN entries were excluded from scoring and are
// skipped here too, so the strategy and the baseline see the identical
// window. BUY maps to a +1 position, SELL to -1, HOLD stays flat.
func Run(forward []float64, assignments []int, decisions []signal.Decision, horizon, recentWindow int) Result {
	if horizon < 1 {
		horizon = 1
	}
	if recentWindow < 1 {
		recentWindow = DefaultRecentWindow
	}

	var positions []float64
	var fwd []float64
	for i, f := range forward {
		if math.IsNaN(f) {
			continue
		}
		pos := 0.0
		switch decisions[assignments[i]].Action {
		case models.SignalBuy:
			pos = 1
		case models.SignalSell:
			pos = -1
		}
		positions = append(positions, pos)
		fwd = append(fwd, f)
	}

	strategy := replayMetrics(positions, fwd, horizon)

	holdPositions := make([]float64, len(fwd))
	for i := range holdPositions {
		holdPositions[i] = 1
	}
	holdMetrics := replayMetrics(holdPositions, fwd, horizon)
	buyHold := models.BuyHoldMetrics{
		Accuracy:     nil,
		SharpeRatio:  holdMetrics.SharpeRatio,
		AnnualReturn: holdMetrics.AnnualReturn,
	}

	verdict := compare(strategy, holdMetrics)

	recentN := recentWindow
	if recentN > len(fwd) {
		recentN = len(fwd)
	}
	recent := replayMetrics(positions[len(positions)-recentN:], fwd[len(fwd)-recentN:], horizon)

	return Result{
		Strategy:       strategy,
		BuyHold:        buyHold,
		Verdict:        verdict,
		Recommendation: recommendation(verdict),
		Recent: models.RecentPerformance{
			Period:  fmt.Sprintf("last %d bars", recentN),
			Metrics: recent,
		},
	}
}

// replayMetrics computes the strategy metric block for one position series.
func replayMetrics(positions, fwd []float64, horizon int) models.StrategyMetrics {
	var m models.StrategyMetrics
	if len(fwd) == 0 {
		return m
	}

	returns := make([]float64, len(fwd))
	directional := 0
	matched := 0
	wins := 0
	var sum float64
	for i := range fwd {
		r := positions[i] * fwd[i]
		returns[i] = r
		sum += r
		if r > 0 {
			wins++
		}
		if positions[i] != 0 {
			directional++
			if (positions[i] > 0 && fwd[i] > 0) || (positions[i] < 0 && fwd[i] < 0) {
				matched++
			}
		}
	}

	mean := sum / float64(len(returns))
	if directional > 0 {
		m.Accuracy = float64(matched) / float64(directional)
	}
	m.WinRate = float64(wins) / float64(len(returns))
	m.AnnualReturn = math.Pow(1+mean, float64(indicators.TradingPeriodsPerYear)) - 1
	if len(returns) >= 2 {
		var ss float64
		for _, r := range returns {
			d := r - mean
			ss += d * d
		}
		if std := math.Sqrt(ss / float64(len(returns)-1)); std > 0 {
			m.SharpeRatio = mean / std * math.Sqrt(float64(indicators.TradingPeriodsPerYear)/float64(horizon))
		}
	}
	m.MaxDrawdown = maxDrawdown(returns)
	return m
}

// maxDrawdown walks the compounded equity curve and reports the deepest
// drop from a running peak. Always <= 0.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

func compare(strategy, baseline models.StrategyMetrics) string {
	dSharpe := strategy.SharpeRatio - baseline.SharpeRatio
	dAnnual := strategy.AnnualReturn - baseline.AnnualReturn
	switch {
	case dSharpe > 0 && dAnnual > 0:
		return VerdictOutperform
	case dSharpe < 0 && dAnnual < 0:
		return VerdictUnderperform
	default:
		return VerdictComparable
	}
}

func recommendation(verdict string) string {
	switch verdict {
	case VerdictOutperform:
		return "The clustering strategy outperformed buy-and-hold on both risk-adjusted and absolute return over this window."
	case VerdictUnderperform:
		return "Buy-and-hold beat the clustering strategy over this window; passively holding would have done better."
	default:
		return "The clustering strategy and buy-and-hold performed comparably over this window."
	}
}
