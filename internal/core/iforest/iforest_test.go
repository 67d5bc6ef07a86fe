package iforest

import (
	"math/rand"
	"testing"
)

func cluster(n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	for i := range data {
		data[i] = []float64{rng.NormFloat64() * 0.5, rng.NormFloat64() * 0.5}
	}
	return data
}

func TestOutlierScoresLower(t *testing.T) {
	data := cluster(200, 1)
	outlier := []float64{8, 8}
	data = append(data, outlier)

	f := New(WithTrees(100), WithSeed(42), WithContamination(0.05))
	if err := f.Fit(data); err != nil {
		t.Fatalf("fit: %v", err)
	}

	sOut, err := f.Score(outlier)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	sIn, err := f.Score([]float64{0, 0})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if sOut >= sIn {
		t.Fatalf("outlier score %f not below inlier score %f", sOut, sIn)
	}
	for _, s := range []float64{sOut, sIn} {
		if s >= 0 || s < -1 {
			t.Fatalf("score %f outside (-1, 0)", s)
		}
	}
	if !f.IsAnomaly(sOut) {
		t.Fatalf("outlier score %f above threshold %f", sOut, f.Threshold())
	}
}

func TestContaminationControlsFlagRate(t *testing.T) {
	data := cluster(300, 2)
	f := New(WithTrees(100), WithSeed(42), WithContamination(0.1))
	if err := f.Fit(data); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scores, err := f.Scores(data)
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	var flagged int
	for _, s := range scores {
		if f.IsAnomaly(s) {
			flagged++
		}
	}
	// the threshold sits at the 10th percentile of training scores
	if flagged > len(data)/10+5 || flagged == 0 {
		t.Fatalf("flagged %d of %d at contamination 0.1", flagged, len(data))
	}
}

func TestScoreBeforeFit(t *testing.T) {
	if _, err := New().Score([]float64{1, 2}); err == nil {
		t.Fatal("expected error before fit")
	}
}

func TestFitEmpty(t *testing.T) {
	if err := New().Fit(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestDeterministicSeed(t *testing.T) {
	data := cluster(150, 3)
	a := New(WithTrees(50), WithSeed(42))
	b := New(WithTrees(50), WithSeed(42))
	if err := a.Fit(data); err != nil {
		t.Fatalf("fit a: %v", err)
	}
	if err := b.Fit(data); err != nil {
		t.Fatalf("fit b: %v", err)
	}
	sa, _ := a.Score([]float64{1, 1})
	sb, _ := b.Score([]float64{1, 1})
	if sa != sb {
		t.Fatalf("same seed diverged: %f vs %f", sa, sb)
	}
}
