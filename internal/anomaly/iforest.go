package anomaly

import (
	"fmt"
	"math"
	"math/rand"
)

// eulerGamma is used by the harmonic-number approximation in averagePathLength.
const eulerGamma = 0.5772156649015329

// autoOffset is the decision threshold used when contamination is estimated
// automatically: a point is an outlier when its score falls below -0.5.
const autoOffset = -0.5

// ForestConfig controls isolation-forest fitting.
type ForestConfig struct {
	Trees      int
	MaxSamples int
	Seed       int64
}

type isoNode struct {
	feature   int
	threshold float64
	left      *isoNode
	right     *isoNode
	size      int
}

func (n *isoNode) leaf() bool { return n.left == nil }

// Forest is a fitted isolation forest.
type Forest struct {
	trees      []*isoNode
	sampleSize int
}

// FitForest grows cfg.Trees isolation trees, each on a sub-sample of
// min(cfg.MaxSamples, len(rows)) rows drawn without replacement. Trees are
// limited to ceil(log2(sample size)) levels. The same seed and row order
// always produce the same forest.
func FitForest(rows [][]float64, cfg ForestConfig) (*Forest, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fit forest: no rows")
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("fit forest: tree count must be positive, got %d", cfg.Trees)
	}
	psi := len(rows)
	if cfg.MaxSamples > 0 && cfg.MaxSamples < psi {
		psi = cfg.MaxSamples
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{trees: make([]*isoNode, cfg.Trees), sampleSize: psi}
	for t := range f.trees {
		idx := rng.Perm(len(rows))[:psi]
		f.trees[t] = grow(rows, idx, 0, maxDepth, rng)
	}
	return f, nil
}

func grow(rows [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if depth >= maxDepth || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}

	// Only features that still vary inside this node can split it.
	width := len(rows[idx[0]])
	var candidates []int
	lo := make([]float64, width)
	hi := make([]float64, width)
	for j := 0; j < width; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := rows[i][j]
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(idx)}
	}

	feat := candidates[rng.Intn(len(candidates))]
	thr := lo[feat] + rng.Float64()*(hi[feat]-lo[feat])

	var left, right []int
	for _, i := range idx {
		if rows[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature:   feat,
		threshold: thr,
		left:      grow(rows, left, depth+1, maxDepth, rng),
		right:     grow(rows, right, depth+1, maxDepth, rng),
		size:      len(idx),
	}
}

// ScoreSamples returns the opposite of the anomaly score for each row:
// values close to -1 are anomalies, values near -0.5 or above are inliers.
func (f *Forest) ScoreSamples(rows [][]float64) []float64 {
	norm := averagePathLength(f.sampleSize)
	out := make([]float64, len(rows))
	for i, x := range rows {
		var total float64
		for _, t := range f.trees {
			total += pathLength(t, x, 0)
		}
		mean := total / float64(len(f.trees))
		out[i] = -math.Pow(2, -mean/norm)
	}
	return out
}

// DecisionFunction shifts ScoreSamples so that negative values are outliers.
func (f *Forest) DecisionFunction(rows [][]float64) []float64 {
	scores := f.ScoreSamples(rows)
	for i := range scores {
		scores[i] -= autoOffset
	}
	return scores
}

func pathLength(n *isoNode, x []float64, depth int) float64 {
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// averagePathLength is the expected path length of an unsuccessful search in
// a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
