// Package signal turns cluster statistics into trading signals.
package signal

import (
	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// Thresholds parameterizes the decision rule. Values come from config; the
// defaults below are the documented starting point, not hardwired behavior.
type Thresholds struct {
	SharpeBuy     float64 `mapstructure:"sharpe_buy" json:"sharpe_buy"`
	SharpeSell    float64 `mapstructure:"sharpe_sell" json:"sharpe_sell"`
	HighSamples   int     `mapstructure:"high_samples" json:"high_samples"`
	MediumSamples int     `mapstructure:"medium_samples" json:"medium_samples"`
}

// DefaultThresholds returns the documented default decision thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SharpeBuy:     0.2,
		SharpeSell:    -0.2,
		HighSamples:   30,
		MediumSamples: 15,
	}
}

// Decision is the signal and its confidence for one cluster.
type Decision struct {
	Action     models.SignalAction
	Confidence models.ConfidenceLevel
}

// Generate applies the threshold rule to one cluster's statistics.
//
// BUY requires a positive mean forward return, Sharpe above SharpeBuy and a
// win rate above one half. SELL mirrors it on the downside. Everything in
// between, including clusters with too few scored points to produce a
// meaningful Sharpe, resolves to HOLD.
func Generate(stat models.ClusterStatistics, th Thresholds) Decision {
	action := models.SignalHold
	switch {
	case stat.MeanReturn > 0 && stat.Sharpe > th.SharpeBuy && stat.WinRate > 0.5:
		action = models.SignalBuy
	case stat.MeanReturn < 0 && stat.Sharpe < th.SharpeSell && stat.WinRate < 0.5:
		action = models.SignalSell
	}
	return Decision{Action: action, Confidence: confidence(action, stat, th)}
}

// GenerateAll produces one decision per cluster, indexed by cluster id.
func GenerateAll(stats []models.ClusterStatistics, th Thresholds) []Decision {
	decisions := make([]Decision, len(stats))
	for i, stat := range stats {
		decisions[i] = Generate(stat, th)
	}
	return decisions
}

// confidence grades the decision by sample support. High requires a
// directional signal whose win rate agrees with the direction and at least
// HighSamples points behind it, so HOLD never reports High.
func confidence(action models.SignalAction, stat models.ClusterStatistics, th Thresholds) models.ConfidenceLevel {
	if stat.TotalPoints >= th.HighSamples {
		if action == models.SignalBuy && stat.WinRate > 0.5 {
			return models.ConfidenceHigh
		}
		if action == models.SignalSell && stat.WinRate < 0.5 {
			return models.ConfidenceHigh
		}
	}
	if stat.TotalPoints >= th.MediumSamples {
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}
