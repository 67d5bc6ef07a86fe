// Package forest implements a bagged random-forest classifier for the
// binary defect target: bootstrapped CART trees with gini splits,
// sqrt feature subsampling and balanced class weights.
package forest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Node is one tree node. Leaves carry the weighted positive fraction
// of the samples that reached them
type Node struct {
	Feature int
	Split   float64
	Left    *Node
	Right   *Node

	Leaf bool
	Prob float64
}

// Tree is a single CART tree
type Tree struct {
	Root *Node
}

// Forest is a trained ensemble
type Forest struct {
	nTrees   int
	maxDepth int
	minLeaf  int
	rng      *rand.Rand

	Trees      []*Tree
	NFeatures  int
	importance []float64
	trained    bool
}

// Option configures a Forest
type Option func(*Forest)

// WithTrees sets the ensemble size
func WithTrees(n int) Option {
	return func(f *Forest) { f.nTrees = n }
}

// WithMaxDepth caps tree depth
func WithMaxDepth(d int) Option {
	return func(f *Forest) { f.maxDepth = d }
}

// WithMinLeaf sets the minimum samples per leaf
func WithMinLeaf(n int) Option {
	return func(f *Forest) { f.minLeaf = n }
}

// WithSeed sets the random seed for reproducibility
func WithSeed(seed int64) Option {
	return func(f *Forest) { f.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Forest with the given options
func New(opts ...Option) *Forest {
	f := &Forest{
		nTrees:   200,
		maxDepth: 12,
		minLeaf:  5,
		rng:      rand.New(rand.NewSource(42)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit trains the forest on x with binary labels y. Class weights are
// balanced so the minority class is not drowned out
func (f *Forest) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("empty or mismatched training data")
	}
	n := len(x)
	nFeatures := len(x[0])

	var pos int
	for _, label := range y {
		if label == 1 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return errors.New("training labels contain a single class")
	}

	// balanced weights: n / (2 * class count)
	w := [2]float64{
		float64(n) / (2 * float64(n-pos)),
		float64(n) / (2 * float64(pos)),
	}

	mtry := int(math.Sqrt(float64(nFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	f.NFeatures = nFeatures
	f.Trees = make([]*Tree, f.nTrees)
	f.importance = make([]float64, nFeatures)
	b := &builder{f: f, x: x, y: y, w: w, mtry: mtry}
	for i := 0; i < f.nTrees; i++ {
		// bootstrap sample with replacement
		idx := make([]int, n)
		for j := range idx {
			idx[j] = f.rng.Intn(n)
		}
		f.Trees[i] = &Tree{Root: b.build(idx, 0)}
	}

	var total float64
	for _, v := range f.importance {
		total += v
	}
	if total > 0 {
		for i := range f.importance {
			f.importance[i] /= total
		}
	}
	f.trained = true
	return nil
}

// ProbPositive returns the mean positive-class probability over all trees
func (f *Forest) ProbPositive(sample []float64) (float64, error) {
	if !f.trained {
		return 0, errors.New("model not trained")
	}
	var sum float64
	for _, t := range f.Trees {
		n := t.Root
		for !n.Leaf {
			if sample[n.Feature] <= n.Split {
				n = n.Left
			} else {
				n = n.Right
			}
		}
		sum += n.Prob
	}
	return sum / float64(len(f.Trees)), nil
}

// Importances returns the normalized mean impurity decrease per feature
func (f *Forest) Importances() []float64 {
	out := make([]float64, len(f.importance))
	copy(out, f.importance)
	return out
}

type builder struct {
	f    *Forest
	x    [][]float64
	y    []int
	w    [2]float64
	mtry int
}

func (b *builder) build(idx []int, depth int) *Node {
	wSum, wPos := b.weights(idx)

	pure := wPos == 0 || wPos == wSum
	if depth >= b.f.maxDepth || len(idx) < 2*b.f.minLeaf || pure {
		return b.leaf(wSum, wPos)
	}

	feat, split, gain, ok := b.bestSplit(idx, wSum, wPos)
	if !ok {
		return b.leaf(wSum, wPos)
	}
	b.f.importance[feat] += gain

	var left, right []int
	for _, i := range idx {
		if b.x[i][feat] <= split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &Node{
		Feature: feat,
		Split:   split,
		Left:    b.build(left, depth+1),
		Right:   b.build(right, depth+1),
	}
}

func (b *builder) leaf(wSum, wPos float64) *Node {
	var p float64
	if wSum > 0 {
		p = wPos / wSum
	}
	return &Node{Leaf: true, Prob: p}
}

func (b *builder) weights(idx []int) (wSum, wPos float64) {
	for _, i := range idx {
		wSum += b.w[b.y[i]]
		if b.y[i] == 1 {
			wPos += b.w[1]
		}
	}
	return wSum, wPos
}

func gini(wSum, wPos float64) float64 {
	if wSum <= 0 {
		return 0
	}
	p := wPos / wSum
	return 1 - p*p - (1-p)*(1-p)
}

type splitPoint struct {
	v     float64
	label int
}

// bestSplit scans mtry random features for the split with the largest
// weighted gini decrease, honoring the minimum leaf size
func (b *builder) bestSplit(idx []int, wSum, wPos float64) (feat int, split, gain float64, ok bool) {
	parent := wSum * gini(wSum, wPos)

	pts := make([]splitPoint, len(idx))
	for _, cand := range b.f.rng.Perm(b.f.NFeatures)[:b.mtry] {
		for j, i := range idx {
			pts[j] = splitPoint{v: b.x[i][cand], label: b.y[i]}
		}
		sort.Slice(pts, func(a, c int) bool { return pts[a].v < pts[c].v })

		var lSum, lPos float64
		for j := 0; j < len(pts)-1; j++ {
			lSum += b.w[pts[j].label]
			if pts[j].label == 1 {
				lPos += b.w[1]
			}
			if pts[j].v == pts[j+1].v {
				continue
			}
			nLeft := j + 1
			if nLeft < b.f.minLeaf || len(pts)-nLeft < b.f.minLeaf {
				continue
			}
			rSum, rPos := wSum-lSum, wPos-lPos
			g := parent - lSum*gini(lSum, lPos) - rSum*gini(rSum, rPos)
			if g > gain {
				feat = cand
				gain = g
				split = (pts[j].v + pts[j+1].v) / 2
				ok = true
			}
		}
	}
	return feat, split, gain, ok
}

// Save serializes the trained forest
func (f *Forest) Save() ([]byte, error) {
	if !f.trained {
		return nil, errors.New("model not trained")
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(f.NFeatures); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.importance); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.Trees); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a forest produced by Save
func (f *Forest) Load(data []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(data))
	if err := dec.Decode(&f.NFeatures); err != nil {
		return err
	}
	if err := dec.Decode(&f.importance); err != nil {
		return err
	}
	if err := dec.Decode(&f.Trees); err != nil {
		return err
	}
	f.trained = true
	return nil
}
