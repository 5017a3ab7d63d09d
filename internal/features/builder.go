// Package features assembles standardized per-bar feature vectors from
// indicator outputs for regime clustering.
package features

import (
	"math"
	"time"

	"github.com/dmarkin/regimecast-ai-go/internal/indicators"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

// Dim is the fixed feature-vector dimensionality.
const Dim = 8

// Names lists the feature dimensions in vector order.
var Names = [Dim]string{
	"return_1d",
	"vol",
	"momentum_20d",
	"rsi",
	"bb_position",
	"dollar_volume",
	"relative_volume",
	"garman_klass_vol",
}

// Vector is one bar's standardized feature vector with a back-reference to
// its index in the source bar series.
type Vector struct {
	BarIndex int
	Values   []float64
}

// Matrix is the standardized feature set for the analysis window, together
// with the per-dimension statistics used for the transformation.
type Matrix struct {
	Vectors []Vector
	Means   [Dim]float64
	Stds    [Dim]float64
}

// Rows returns the standardized vectors as a plain float64 matrix in bar
// order, for consumers that do not need the bar back-references.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, len(m.Vectors))
	for i, v := range m.Vectors {
		rows[i] = v.Values
	}
	return rows
}

// BarIndices returns the source bar index of every vector, in order.
func (m *Matrix) BarIndices() []int {
	indices := make([]int, len(m.Vectors))
	for i, v := range m.Vectors {
		indices[i] = v.BarIndex
	}
	return indices
}

// Build assembles feature vectors from bars and their indicator set, keeps
// only bars inside [start, end] with every dimension finite, and
// standardizes each dimension to zero mean and unit variance over the kept
// set. Fails when fewer than lookbackWindow usable bars remain.
func Build(bars []models.Bar, set *indicators.Set, start, end time.Time, lookbackWindow int) (*Matrix, error) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	bbPosition := set.BollingerPosition(closes)

	var vectors []Vector
	for i := range bars {
		if bars[i].Date.Before(start) || bars[i].Date.After(end) {
			continue
		}
		values := []float64{
			set.Return1D[i],
			set.Volatility[i],
			set.Momentum[i],
			set.RSI[i],
			bbPosition[i],
			set.DollarVolume[i],
			set.RelativeVolume[i],
			set.GarmanKlass[i],
		}
		if !allFinite(values) {
			continue
		}
		vectors = append(vectors, Vector{BarIndex: i, Values: values})
	}

	if len(vectors) < lookbackWindow {
		return nil, utils.NewInsufficientHistoryError(lookbackWindow, len(vectors))
	}

	m := &Matrix{Vectors: vectors}
	m.standardize()
	return m, nil
}

// standardize transforms every dimension in place to zero mean and unit
// variance over the retained set. Zero-variance dimensions map to zero
// (unit scale), matching the behavior of the usual scaler so constant
// features cannot blow up the transform.
func (m *Matrix) standardize() {
	n := float64(len(m.Vectors))
	for d := 0; d < Dim; d++ {
		var sum float64
		for _, v := range m.Vectors {
			sum += v.Values[d]
		}
		mean := sum / n

		var ss float64
		for _, v := range m.Vectors {
			diff := v.Values[d] - mean
			ss += diff * diff
		}
		std := math.Sqrt(ss / n)

		m.Means[d] = mean
		m.Stds[d] = std

		scale := std
		if scale == 0 {
			scale = 1
		}
		for _, v := range m.Vectors {
			v.Values[d] = (v.Values[d] - mean) / scale
		}
	}
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
