// Package iforest implements isolation-forest anomaly scoring over
// standardized production features. Scores are negative with lower values
// more anomalous; the contamination rate fixes the flagging threshold
// at the matching percentile of the training scores.
package iforest

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

type node struct {
	splitFeature int
	splitValue   float64
	left         *node
	right        *node
	size         int
}

// Forest is an isolation forest fitted on one batch
type Forest struct {
	nTrees        int
	sampleSize    int
	contamination float64
	maxDepth      int
	rng           *rand.Rand

	trees     []*node
	threshold float64
	cNorm     float64
	trained   bool
}

// Option configures a Forest
type Option func(*Forest)

// WithTrees sets the number of isolation trees
func WithTrees(n int) Option {
	return func(f *Forest) { f.nTrees = n }
}

// WithContamination sets the expected anomaly share in the data
func WithContamination(c float64) Option {
	return func(f *Forest) { f.contamination = c }
}

// WithSeed sets the random seed for reproducibility
func WithSeed(seed int64) Option {
	return func(f *Forest) { f.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Forest with the given options
func New(opts ...Option) *Forest {
	f := &Forest{
		nTrees:        200,
		sampleSize:    256,
		contamination: 0.08,
		rng:           rand.New(rand.NewSource(42)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit builds the trees from data and fixes the anomaly threshold at the
// contamination percentile of the training scores
func (f *Forest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("empty training data")
	}
	n := len(data)
	nFeatures := len(data[0])

	sampleSize := f.sampleSize
	if sampleSize > n {
		sampleSize = n
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(sampleSize))))
	f.cNorm = avgPathLength(float64(sampleSize))

	f.trees = make([]*node, f.nTrees)
	for i := range f.trees {
		idx := f.rng.Perm(n)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, k := range idx {
			sample[j] = data[k]
		}
		f.trees[i] = f.buildNode(sample, nFeatures, 0)
	}
	f.trained = true

	scores, err := f.Scores(data)
	if err != nil {
		return err
	}
	f.threshold = percentile(scores, f.contamination*100)
	return nil
}

func (f *Forest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)
	if depth >= f.maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := f.rng.Intn(nFeatures)
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &node{size: n}
	}

	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         f.buildNode(left, nFeatures, depth+1),
		right:        f.buildNode(right, nFeatures, depth+1),
	}
}

// Score returns the anomaly score of one sample: -2^(-E[h]/c(n)).
// Values near -1 are highly anomalous, values near -0.5 are typical
func (f *Forest) Score(sample []float64) (float64, error) {
	if !f.trained {
		return 0, errors.New("model not trained")
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(sample, t, 0)
	}
	avg := total / float64(len(f.trees))
	return -math.Pow(2, -avg/f.cNorm), nil
}

// Scores returns the anomaly score per row of data
func (f *Forest) Scores(data [][]float64) ([]float64, error) {
	out := make([]float64, len(data))
	for i, sample := range data {
		s, err := f.Score(sample)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Threshold returns the fitted flagging threshold
func (f *Forest) Threshold() float64 { return f.threshold }

// IsAnomaly reports whether a score falls below the threshold
func (f *Forest) IsAnomaly(score float64) bool { return score < f.threshold }

func pathLength(sample []float64, n *node, depth int) float64 {
	if n.left == nil && n.right == nil {
		return float64(depth) + avgPathLength(float64(n.size))
	}
	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, depth+1)
	}
	return pathLength(sample, n.right, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search,
// c(n) = 2*H(n-1) - 2*(n-1)/n with the harmonic number approximated via
// the Euler-Mascheroni constant
func avgPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
