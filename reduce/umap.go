// Package reduce projects high-dimensional embeddings to two or three
// dimensions with UMAP, for plotting. The projection is fitted over the whole
// vector set at once; adding a record means fitting again.
package reduce

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

var ErrTooFewPoints = errors.New("at least two points are needed for a projection")

// Options control a single UMAP fit.
type Options struct {
	Components         int
	Neighbors          int
	MinDist            float64
	Spread             float64
	Epochs             int
	LearningRate       float64
	NegativeSampleRate int
	Seed               int64
}

// DefaultOptions mirrors the reference UMAP defaults.
func DefaultOptions(components int) Options {
	return Options{
		Components:         components,
		Neighbors:          15,
		MinDist:            0.1,
		Spread:             1.0,
		Epochs:             200,
		LearningRate:       1.0,
		NegativeSampleRate: 5,
		Seed:               42,
	}
}

// Fit returns one point with opts.Components coordinates per input row. The
// same data and seed always give the same result.
func Fit(data [][]float64, opts Options) ([][]float64, error) {
	if opts.Components <= 0 {
		return nil, fmt.Errorf("invalid number of components %d", opts.Components)
	}
	if opts.Neighbors < 2 {
		return nil, fmt.Errorf("invalid number of neighbors %d", opts.Neighbors)
	}
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("invalid number of epochs %d", opts.Epochs)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(data))
	}
	dim := len(data[0])
	for i, row := range data {
		if len(row) == 0 || len(row) != dim {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), dim)
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	k := opts.Neighbors
	if k > len(data)-1 {
		k = len(data) - 1
	}

	indices, distances := nearestNeighbors(data, k)
	graph := fuzzySimplicialSet(indices, distances)
	embedding := initialize(data, opts.Components, rng)
	a, b := fitCurve(opts.Spread, opts.MinDist)
	optimizeLayout(embedding, graph, a, b, opts, rng)

	return embedding, nil
}

// nearestNeighbors does an exact Euclidean k-nearest-neighbour search, the
// point itself excluded. Ties break on the lower index.
func nearestNeighbors(data [][]float64, k int) ([][]int, [][]float64) {
	n := len(data)
	indices := make([][]int, n)
	distances := make([][]float64, n)

	candidates := make([]int, 0, n-1)
	dist := make([]float64, n)
	for i := range data {
		candidates = candidates[:0]
		for j := range data {
			if j == i {
				continue
			}
			dist[j] = floats.Distance(data[i], data[j], 2)
			candidates = append(candidates, j)
		}
		sort.SliceStable(candidates, func(x, y int) bool {
			return dist[candidates[x]] < dist[candidates[y]]
		})

		indices[i] = make([]int, k)
		distances[i] = make([]float64, k)
		for m := 0; m < k; m++ {
			indices[i][m] = candidates[m]
			distances[i][m] = dist[candidates[m]]
		}
	}
	return indices, distances
}

type edge struct {
	head, tail int
	weight     float64
}

// fuzzySimplicialSet turns neighbour distances into membership strengths
// and merges the directed graph with a fuzzy union, w = a + b - ab.
func fuzzySimplicialSet(indices [][]int, distances [][]float64) []edge {
	const (
		iterations = 64
		tolerance  = 1e-5
		minScale   = 1e-3
	)

	var meanAll float64
	count := 0
	for _, row := range distances {
		for _, d := range row {
			meanAll += d
			count++
		}
	}
	meanAll /= float64(count)

	directed := make(map[[2]int]float64)
	for i, row := range distances {
		k := len(row)
		target := math.Log2(float64(k))

		rho := 0.0
		for _, d := range row {
			if d > 0 {
				rho = d
				break
			}
		}

		lo, hi, sigma := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < iterations; iter++ {
			sum := 0.0
			for _, d := range row {
				if gap := d - rho; gap > 0 {
					sum += math.Exp(-gap / sigma)
				} else {
					sum++
				}
			}
			if math.Abs(sum-target) < tolerance {
				break
			}
			if sum > target {
				hi = sigma
				sigma = (lo + hi) / 2
			} else {
				lo = sigma
				if math.IsInf(hi, 1) {
					sigma *= 2
				} else {
					sigma = (lo + hi) / 2
				}
			}
		}

		if rho > 0 {
			sigma = math.Max(sigma, minScale*floats.Sum(row)/float64(k))
		} else {
			sigma = math.Max(sigma, minScale*meanAll)
		}

		for m, j := range indices[i] {
			w := 1.0
			if gap := row[m] - rho; gap > 0 {
				w = math.Exp(-gap / sigma)
			}
			directed[[2]int{i, j}] = w
		}
	}

	seen := make(map[[2]int]bool, len(directed))
	edges := make([]edge, 0, len(directed))
	for key := range directed {
		i, j := key[0], key[1]
		if i > j {
			i, j = j, i
		}
		pair := [2]int{i, j}
		if seen[pair] {
			continue
		}
		seen[pair] = true

		forward := directed[[2]int{i, j}]
		backward := directed[[2]int{j, i}]
		edges = append(edges, edge{head: i, tail: j, weight: forward + backward - forward*backward})
	}

	sort.Slice(edges, func(x, y int) bool {
		if edges[x].head != edges[y].head {
			return edges[x].head < edges[y].head
		}
		return edges[x].tail < edges[y].tail
	})
	return edges
}

// initialize places points on their leading principal components, rescaled
// to [0, 10] per axis. Axes PCA cannot provide fall back to uniform noise.
func initialize(data [][]float64, components int, rng *rand.Rand) [][]float64 {
	n, dim := len(data), len(data[0])
	embedding := make([][]float64, n)
	for i := range embedding {
		embedding[i] = make([]float64, components)
	}

	x := mat.NewDense(n, dim, nil)
	for i, row := range data {
		x.SetRow(i, row)
	}
	for j := 0; j < dim; j++ {
		mean := stat.Mean(mat.Col(nil, j, x), nil)
		for i := 0; i < n; i++ {
			x.Set(i, j, x.At(i, j)-mean)
		}
	}

	available := 0
	var pc stat.PC
	if pc.PrincipalComponents(x, nil) {
		var vectors mat.Dense
		pc.VectorsTo(&vectors)
		_, c := vectors.Dims()
		available = c
		if available > components {
			available = components
		}
		if available > 0 {
			var projected mat.Dense
			projected.Mul(x, vectors.Slice(0, dim, 0, available))
			for i := range embedding {
				for d := 0; d < available; d++ {
					embedding[i][d] = projected.At(i, d)
				}
			}
		}
	}

	for d := 0; d < components; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		if d < available {
			for i := range embedding {
				lo = math.Min(lo, embedding[i][d])
				hi = math.Max(hi, embedding[i][d])
			}
		}
		for i := range embedding {
			if d < available && hi > lo {
				embedding[i][d] = 10*(embedding[i][d]-lo)/(hi-lo) + 1e-4*rng.NormFloat64()
			} else {
				embedding[i][d] = 10 * rng.Float64()
			}
		}
	}
	return embedding
}

// fitCurve finds a and b so that 1/(1+a*d^(2b)) approximates the membership
// curve implied by spread and minDist.
func fitCurve(spread, minDist float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	floats.Span(xs, 0, 3*spread)
	for i, x := range xs {
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			a, b := p[0], p[1]
			if a <= 0 || b <= 0 {
				return math.Inf(1)
			}
			var sum float64
			for i, x := range xs {
				r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
				sum += r * r
			}
			return sum
		},
	}

	result, err := optimize.Minimize(problem, []float64{1, 1}, nil, &optimize.NelderMead{})
	if err != nil || result == nil || !(result.X[0] > 0 && result.X[1] > 0) || math.IsInf(result.X[0], 0) || math.IsInf(result.X[1], 0) {
		// Values for the default spread and min_dist.
		return 1.577, 0.8951
	}
	return result.X[0], result.X[1]
}

// optimizeLayout runs the epoch-scheduled stochastic gradient descent:
// edges are sampled in proportion to their weight, pulling their endpoints
// together, and each sample pushes the head away from random points.
func optimizeLayout(embedding [][]float64, edges []edge, a, b float64, opts Options, rng *rand.Rand) {
	if len(edges) == 0 {
		return
	}

	maxWeight := 0.0
	for _, e := range edges {
		maxWeight = math.Max(maxWeight, e.weight)
	}
	kept := edges[:0]
	for _, e := range edges {
		if e.weight >= maxWeight/float64(opts.Epochs) {
			kept = append(kept, e)
		}
	}
	edges = kept

	negativeRate := float64(opts.NegativeSampleRate)
	if negativeRate <= 0 {
		negativeRate = 1
	}
	learningRate := opts.LearningRate
	if learningRate <= 0 {
		learningRate = 1
	}

	epochsPerSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	epochsPerNegative := make([]float64, len(edges))
	nextNegative := make([]float64, len(edges))
	for i, e := range edges {
		epochsPerSample[i] = maxWeight / e.weight
		nextSample[i] = epochsPerSample[i]
		epochsPerNegative[i] = epochsPerSample[i] / negativeRate
		nextNegative[i] = epochsPerNegative[i]
	}

	n := len(embedding)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		alpha := learningRate * (1 - float64(epoch)/float64(opts.Epochs))
		now := float64(epoch)

		for i, e := range edges {
			if nextSample[i] > now {
				continue
			}
			current, other := embedding[e.head], embedding[e.tail]

			d2 := squaredDistance(current, other)
			coef := 0.0
			if d2 > 0 {
				coef = -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
			}
			for d := range current {
				g := clip(coef*(current[d]-other[d])) * alpha
				current[d] += g
				other[d] -= g
			}
			nextSample[i] += epochsPerSample[i]

			negatives := int((now - nextNegative[i]) / epochsPerNegative[i])
			if negatives < 0 {
				negatives = 0
			}
			for s := 0; s < negatives; s++ {
				k := rng.Intn(n)
				if k == e.head {
					continue
				}
				other := embedding[k]
				d2 := squaredDistance(current, other)
				coef := 0.0
				if d2 > 0 {
					coef = 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				}
				for d := range current {
					g := 4.0
					if coef > 0 {
						g = clip(coef * (current[d] - other[d]))
					}
					current[d] += g * alpha
				}
			}
			nextNegative[i] += float64(negatives) * epochsPerNegative[i]
		}
	}
}

func squaredDistance(x, y []float64) float64 {
	var sum float64
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return sum
}

func clip(v float64) float64 {
	return math.Max(-4, math.Min(4, v))
}
