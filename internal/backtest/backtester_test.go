package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/signal"
)

func decisionsFor(actions ...models.SignalAction) []signal.Decision {
	out := make([]signal.Decision, len(actions))
	for i, a := range actions {
		out[i] = signal.Decision{Action: a, Confidence: models.ConfidenceMedium}
	}
	return out
}

func TestRunAccuracyCountsDirectionalBarsOnly(t *testing.T) {
	forward := []float64{0.01, -0.02, -0.03, math.NaN()}
	assignments := []int{0, 1, 0, 0}
	decisions := decisionsFor(models.SignalBuy, models.SignalSell)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	// Bar 0: BUY into a gain, correct. Bar 1: SELL into a loss, correct.
	// Bar 2: BUY into a loss, wrong. The NaN bar never entered the replay.
	assert.InDelta(t, 2.0/3.0, res.Strategy.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, res.Strategy.WinRate, 1e-12)
}

func TestRunHoldBarsStayOutOfAccuracy(t *testing.T) {
	forward := []float64{0.05, 0.01, -0.01}
	assignments := []int{0, 1, 1}
	decisions := decisionsFor(models.SignalHold, models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	// Only the two BUY bars are directional; one of them was right.
	assert.InDelta(t, 0.5, res.Strategy.Accuracy, 1e-12)
	// The flat bar contributes a zero return, which is not a win.
	assert.InDelta(t, 1.0/3.0, res.Strategy.WinRate, 1e-12)
}

func TestRunAllHoldUnderperformsRisingMarket(t *testing.T) {
	forward := []float64{0.01, 0.02, 0.015}
	assignments := []int{0, 0, 0}
	decisions := decisionsFor(models.SignalHold)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	assert.Zero(t, res.Strategy.Accuracy)
	assert.Zero(t, res.Strategy.SharpeRatio)
	assert.Zero(t, res.Strategy.AnnualReturn)
	assert.Zero(t, res.Strategy.MaxDrawdown)

	require.Nil(t, res.BuyHold.Accuracy)
	assert.Greater(t, res.BuyHold.AnnualReturn, 0.0)
	assert.Equal(t, VerdictUnderperform, res.Verdict)
	assert.Contains(t, res.Recommendation, "uy-and-hold beat")
}

func TestRunMaxDrawdownFromEquityCurve(t *testing.T) {
	forward := []float64{0.1, -0.5, 0.2}
	assignments := []int{0, 0, 0}
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	// Equity runs 1.1 -> 0.55 -> 0.66 against a 1.1 peak.
	assert.InDelta(t, -0.5, res.Strategy.MaxDrawdown, 1e-12)
	assert.LessOrEqual(t, res.Strategy.MaxDrawdown, 0.0)
}

func TestRunAnnualReturnCompoundsMeanReturn(t *testing.T) {
	forward := []float64{0.01, 0.01}
	assignments := []int{0, 0}
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	want := math.Pow(1.01, 252) - 1
	assert.InDelta(t, want, res.Strategy.AnnualReturn, 1e-9)
}

func TestRunSharpeAnnualizationScalesWithHorizon(t *testing.T) {
	forward := []float64{0.1, 0.2}
	assignments := []int{0, 0}
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 2, DefaultRecentWindow)

	mean := 0.15
	std := math.Sqrt(0.005)
	want := mean / std * math.Sqrt(252.0/2.0)
	assert.InDelta(t, want, res.Strategy.SharpeRatio, 1e-9)
}

func TestRunVerdictOutperform(t *testing.T) {
	forward := []float64{-0.01, -0.02, 0.01}
	assignments := []int{0, 0, 1}
	decisions := decisionsFor(models.SignalSell, models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	// Shorting the falling cluster turns every bar into a gain while the
	// baseline loses money.
	assert.Equal(t, VerdictOutperform, res.Verdict)
	assert.Greater(t, res.Strategy.AnnualReturn, res.BuyHold.AnnualReturn)
	assert.Contains(t, res.Recommendation, "outperformed")
}

func TestRunVerdictComparableWhenIdentical(t *testing.T) {
	forward := []float64{0.01, -0.005, 0.02}
	assignments := []int{0, 0, 0}
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	// An always-long strategy is the baseline, so no verdict direction.
	assert.Equal(t, VerdictComparable, res.Verdict)
	assert.InDelta(t, res.BuyHold.SharpeRatio, res.Strategy.SharpeRatio, 1e-12)
	assert.InDelta(t, res.BuyHold.AnnualReturn, res.Strategy.AnnualReturn, 1e-12)
}

func TestRunRecentWindowRestrictsBars(t *testing.T) {
	forward := []float64{-0.05, -0.04, -0.06, -0.05, -0.04, -0.03, -0.05, 0.02, 0.03, 0.01}
	assignments := make([]int, len(forward))
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, 3)

	assert.Equal(t, "last 3 bars", res.Recent.Period)
	// The trailing three bars are all gains even though the full window is
	// deeply negative.
	assert.InDelta(t, 1.0, res.Recent.Metrics.WinRate, 1e-12)
	assert.Greater(t, res.Recent.Metrics.AnnualReturn, 0.0)
	assert.Less(t, res.Strategy.AnnualReturn, 0.0)
}

func TestRunRecentWindowClampedToScoredBars(t *testing.T) {
	forward := []float64{0.01, 0.02}
	assignments := []int{0, 0}
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	assert.Equal(t, "last 2 bars", res.Recent.Period)
	assert.InDelta(t, res.Strategy.WinRate, res.Recent.Metrics.WinRate, 1e-12)
}

func TestRunNoScoredBars(t *testing.T) {
	forward := []float64{math.NaN(), math.NaN()}
	assignments := []int{0, 0}
	decisions := decisionsFor(models.SignalBuy)

	res := Run(forward, assignments, decisions, 1, DefaultRecentWindow)

	assert.Zero(t, res.Strategy.SharpeRatio)
	assert.Zero(t, res.Strategy.MaxDrawdown)
	assert.Equal(t, VerdictComparable, res.Verdict)
	assert.Nil(t, res.BuyHold.Accuracy)
}
