// Package cluster partitions standardized feature vectors into market
// regimes with seeded K-means, then enforces a minimum cluster population by
// merging undersized clusters into their nearest surviving centroid.
package cluster

import (
	"math"
	"math/rand"
	"sort"

	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

// Config controls one clustering run. The seed makes runs reproducible:
// identical inputs and config produce identical assignments.
type Config struct {
	K              int
	MinClusterSize int
	Seed           int64
	MaxIterations  int
	Tolerance      float64
}

// DefaultMaxIterations caps Lloyd iterations when the config leaves it zero.
const DefaultMaxIterations = 300

// DefaultTolerance is the squared centroid-shift threshold for convergence.
const DefaultTolerance = 1e-8

// Result holds the final assignment after merging and id compaction.
// Cluster ids are a contiguous range starting at 0, and every cluster's
// population is at least MinClusterSize unless only one cluster survived.
type Result struct {
	Assignments []int
	Centroids   [][]float64
	Sizes       []int
	K           int
}

// Run clusters rows into cfg.K groups and post-processes undersized
// clusters. Fails with a clustering error on an empty or non-finite matrix,
// or when there are fewer rows than clusters.
func Run(rows [][]float64, cfg Config) (*Result, error) {
	if len(rows) == 0 {
		return nil, utils.NewClusteringError("empty feature matrix")
	}
	dim := len(rows[0])
	for i, row := range rows {
		if len(row) != dim {
			return nil, utils.NewClusteringErrorf("ragged feature matrix at row %d", i)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, utils.NewClusteringErrorf("non-finite value in feature matrix at row %d", i)
			}
		}
	}
	if cfg.K < 1 {
		return nil, utils.NewClusteringErrorf("invalid cluster count %d", cfg.K)
	}
	if cfg.K > len(rows) {
		return nil, utils.NewClusteringErrorf("more clusters (%d) than points (%d)", cfg.K, len(rows))
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := seedCentroids(rows, cfg.K, rng)
	assignments := make([]int, len(rows))

	for iter := 0; iter < maxIter; iter++ {
		assign(rows, centroids, assignments)
		reseedEmptyClusters(rows, centroids, assignments)

		next := computeCentroids(rows, assignments, len(centroids), dim)
		shift := 0.0
		for c := range centroids {
			if d := squaredDistance(centroids[c], next[c]); d > shift {
				shift = d
			}
		}
		centroids = next
		if shift <= tol {
			break
		}
	}
	assign(rows, centroids, assignments)

	mergeUndersized(rows, centroids, assignments, cfg.MinClusterSize)
	return compact(rows, assignments, dim), nil
}

// seedCentroids picks initial centroids k-means++ style: the first uniformly
// at random, each next weighted by squared distance to the nearest chosen
// centroid. Identical seeds reproduce identical choices.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := rng.Intn(len(rows))
	centroids = append(centroids, cloneRow(rows[first]))

	distances := make([]float64, len(rows))
	for len(centroids) < k {
		total := 0.0
		for i, row := range rows {
			best := math.MaxFloat64
			for _, c := range centroids {
				if d := squaredDistance(row, c); d < best {
					best = d
				}
			}
			distances[i] = best
			total += best
		}

		var pick int
		if total == 0 {
			// All remaining points coincide with a centroid.
			pick = rng.Intn(len(rows))
		} else {
			target := rng.Float64() * total
			cumulative := 0.0
			pick = len(rows) - 1
			for i, d := range distances {
				cumulative += d
				if cumulative >= target {
					pick = i
					break
				}
			}
		}
		centroids = append(centroids, cloneRow(rows[pick]))
	}
	return centroids
}

// assign maps every row to its nearest centroid, lowest id on ties.
func assign(rows, centroids [][]float64, assignments []int) {
	for i, row := range rows {
		best := 0
		bestDist := squaredDistance(row, centroids[0])
		for c := 1; c < len(centroids); c++ {
			if d := squaredDistance(row, centroids[c]); d < bestDist {
				best = c
				bestDist = d
			}
		}
		assignments[i] = best
	}
}

// reseedEmptyClusters moves the point farthest from its assigned centroid
// into any cluster that ended up empty, keeping the run deterministic.
func reseedEmptyClusters(rows, centroids [][]float64, assignments []int) {
	counts := make([]int, len(centroids))
	for _, a := range assignments {
		counts[a]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		farthest, farthestDist := -1, -1.0
		for i, row := range rows {
			if counts[assignments[i]] <= 1 {
				continue
			}
			if d := squaredDistance(row, centroids[assignments[i]]); d > farthestDist {
				farthest = i
				farthestDist = d
			}
		}
		if farthest < 0 {
			continue
		}
		counts[assignments[farthest]]--
		assignments[farthest] = c
		counts[c]++
		centroids[c] = cloneRow(rows[farthest])
	}
}

func computeCentroids(rows [][]float64, assignments []int, k, dim int) [][]float64 {
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, row := range rows {
		c := assignments[i]
		counts[c]++
		for d, v := range row {
			sums[c][d] += v
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
	}
	return sums
}

// mergeUndersized repeatedly folds the smallest cluster below minSize into
// the nearest surviving centroid (Euclidean distance between centroids,
// lowest id on ties) until every survivor meets the minimum or one cluster
// remains. Merged centroids are recomputed as population-weighted means.
func mergeUndersized(rows, centroids [][]float64, assignments []int, minSize int) {
	if minSize <= 1 {
		return
	}
	sizes := make([]int, len(centroids))
	for _, a := range assignments {
		sizes[a]++
	}
	active := make([]bool, len(centroids))
	activeCount := len(centroids)
	for c := range active {
		active[c] = true
	}

	for activeCount > 1 {
		offender := -1
		for c := range centroids {
			if !active[c] || sizes[c] >= minSize {
				continue
			}
			if offender == -1 || sizes[c] < sizes[offender] {
				offender = c
			}
		}
		if offender == -1 {
			break
		}

		target := -1
		bestDist := math.MaxFloat64
		for c := range centroids {
			if !active[c] || c == offender {
				continue
			}
			if d := squaredDistance(centroids[offender], centroids[c]); d < bestDist {
				target = c
				bestDist = d
			}
		}
		if target == -1 {
			break
		}

		for i, a := range assignments {
			if a == offender {
				assignments[i] = target
			}
		}
		mergedSize := sizes[target] + sizes[offender]
		if mergedSize > 0 {
			for d := range centroids[target] {
				centroids[target][d] = (centroids[target][d]*float64(sizes[target]) +
					centroids[offender][d]*float64(sizes[offender])) / float64(mergedSize)
			}
		}
		sizes[target] = mergedSize
		sizes[offender] = 0
		active[offender] = false
		activeCount--
	}
}

// compact renumbers surviving clusters to a contiguous range starting at 0,
// preserving ascending original id order, and recomputes exact centroids.
func compact(rows [][]float64, assignments []int, dim int) *Result {
	surviving := map[int]bool{}
	for _, a := range assignments {
		surviving[a] = true
	}
	ids := make([]int, 0, len(surviving))
	for id := range surviving {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	remap := make(map[int]int, len(ids))
	for newID, oldID := range ids {
		remap[oldID] = newID
	}

	result := &Result{
		Assignments: make([]int, len(assignments)),
		K:           len(ids),
	}
	for i, a := range assignments {
		result.Assignments[i] = remap[a]
	}
	result.Centroids = computeCentroids(rows, result.Assignments, result.K, dim)
	result.Sizes = make([]int, result.K)
	for _, a := range result.Assignments {
		result.Sizes[a]++
	}
	return result
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cloneRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
