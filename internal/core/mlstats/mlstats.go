// Package mlstats provides the evaluation and preprocessing math shared by
// training and anomaly detection: stratified splits, classification metrics,
// ROC-AUC and feature standardization.
package mlstats

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// StratifiedSplit partitions indices 0..len(y)-1 into train and test sets,
// preserving the class ratio of y. testFrac is the test share, rounded per
// class with at least one test sample for any class of two or more
func StratifiedSplit(y []int, testFrac float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(float64(len(idx))*testFrac + 0.5)
		if nTest == 0 && len(idx) >= 2 {
			nTest = 1
		}
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedKFold returns k folds of indices with per-class balance.
// Fold f's test set is folds[f]; its train set is the rest
func StratifiedKFold(y []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	folds := make([][]int, k)
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for i, v := range idx {
			folds[i%k] = append(folds[i%k], v)
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// confusion counts for binary labels
func confusion(yTrue, yPred []int) (tp, fp, fn, tn int) {
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			tp++
		case yTrue[i] == 0 && yPred[i] == 1:
			fp++
		case yTrue[i] == 1 && yPred[i] == 0:
			fn++
		default:
			tn++
		}
	}
	return tp, fp, fn, tn
}

// Accuracy is the fraction of matching labels
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var hit int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// Precision for the positive class, 0 when nothing was predicted positive
func Precision(yTrue, yPred []int) float64 {
	tp, fp, _, _ := confusion(yTrue, yPred)
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

// Recall for the positive class, 0 when no positives exist
func Recall(yTrue, yPred []int) float64 {
	tp, _, fn, _ := confusion(yTrue, yPred)
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

// F1 is the harmonic mean of precision and recall, 0 when both are 0
func F1(yTrue, yPred []int) float64 {
	p, r := Precision(yTrue, yPred), Recall(yTrue, yPred)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// ROCAUC computes the area under the ROC curve from positive-class scores.
// Returns ok=false when yTrue holds a single class
func ROCAUC(yTrue []int, scores []float64) (auc float64, ok bool) {
	var pos int
	for _, label := range yTrue {
		if label == 1 {
			pos++
		}
	}
	if pos == 0 || pos == len(yTrue) {
		return 0, false
	}

	type pair struct {
		s float64
		c bool
	}
	pairs := make([]pair, len(yTrue))
	for i := range yTrue {
		pairs[i] = pair{s: scores[i], c: yTrue[i] == 1}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].s < pairs[j].s })

	ys := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	for i, p := range pairs {
		ys[i] = p.s
		classes[i] = p.c
	}
	tpr, fpr, _ := stat.ROC(nil, ys, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}

// Scaler standardizes features to zero mean and unit variance, leaving
// zero-variance columns untouched beyond centering
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler learns per-column mean and standard deviation from x
func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}
	nCols := len(x[0])
	s := &Scaler{Mean: make([]float64, nCols), Std: make([]float64, nCols)}
	col := make([]float64, len(x))
	for j := 0; j < nCols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.StdDev(col, nil)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s
}

// Transform returns the standardized copy of x
func (s *Scaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = o
	}
	return out
}
