// Package scoring computes per-cluster forward-return statistics over a
// fixed holding horizon.
package scoring

import (
	"math"

	"github.com/dmarkin/regimecast-ai-go/internal/indicators"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// DefaultHorizon is the holding horizon in bars for forward returns.
const DefaultHorizon = 1

// Outcome holds the scored statistics and the forward-return series the
// backtester replays. ForwardReturns aligns with the vector/assignment
// order; NaN marks points excluded from scoring.
type Outcome struct {
	Stats          []models.ClusterStatistics
	ForwardReturns []float64
}

// Score computes forward returns close[t+horizon]/close[t] - 1 for every
// usable bar and aggregates them per cluster. Two classes of bars are never
// scored: bars in the trailing horizon window (their forward bar does not
// exist) and the most recent usable bar (it is the prediction target, and
// letting its outcome into its own cluster's statistics would leak the
// answer into the question). total_points reports full cluster population,
// so the merge guarantee of min_cluster_size carries through to the
// response; mean, Sharpe and win rate aggregate the scored subset only.
func Score(bars []models.Bar, barIndices, assignments []int, k, horizon int) *Outcome {
	if horizon < 1 {
		horizon = DefaultHorizon
	}
	n := len(bars)
	forward := make([]float64, len(barIndices))

	population := make([]int, k)
	sums := make([]float64, k)
	counts := make([]int, k)
	wins := make([]int, k)
	returnsPerCluster := make([][]float64, k)

	for i, barIdx := range barIndices {
		cluster := assignments[i]
		population[cluster]++
		forward[i] = math.NaN()

		if i == len(barIndices)-1 {
			continue
		}
		if barIdx+horizon >= n {
			continue
		}
		entry := bars[barIdx].Close
		if entry == 0 {
			continue
		}
		fwd := bars[barIdx+horizon].Close/entry - 1

		forward[i] = fwd
		sums[cluster] += fwd
		counts[cluster]++
		if fwd > 0 {
			wins[cluster]++
		}
		returnsPerCluster[cluster] = append(returnsPerCluster[cluster], fwd)
	}

	annualize := math.Sqrt(float64(indicators.TradingPeriodsPerYear) / float64(horizon))
	stats := make([]models.ClusterStatistics, k)
	for c := 0; c < k; c++ {
		stat := models.ClusterStatistics{
			ClusterID:   c,
			TotalPoints: population[c],
		}
		if counts[c] > 0 {
			mean := sums[c] / float64(counts[c])
			stat.MeanReturn = mean
			stat.WinRate = float64(wins[c]) / float64(counts[c])
			if counts[c] >= 2 {
				if std := sampleStd(returnsPerCluster[c], mean); std > 0 {
					stat.Sharpe = mean / std * annualize
				}
			}
		}
		stats[c] = stat
	}

	return &Outcome{Stats: stats, ForwardReturns: forward}
}

func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
