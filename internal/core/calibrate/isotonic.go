// Package calibrate turns raw forest votes into calibrated probabilities:
// cross-validated ensemble members each pair a forest with an isotonic
// regression fitted on held-out predictions.
package calibrate

import (
	"errors"
	"sort"
)

// Isotonic is a monotone non-decreasing mapping from raw score to
// calibrated probability, fitted with pool-adjacent-violators
type Isotonic struct {
	X []float64
	Y []float64
}

// FitIsotonic fits scores against binary targets. Duplicate scores are
// pooled before the PAV sweep
func FitIsotonic(scores []float64, y []int) (*Isotonic, error) {
	if len(scores) == 0 || len(scores) != len(y) {
		return nil, errors.New("empty or mismatched calibration data")
	}

	type obs struct {
		x, sum, w float64
	}
	pts := make([]obs, len(scores))
	for i, s := range scores {
		pts[i] = obs{x: s, sum: float64(y[i]), w: 1}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	// merge ties on x
	merged := pts[:0]
	for _, p := range pts {
		if n := len(merged); n > 0 && merged[n-1].x == p.x {
			merged[n-1].sum += p.sum
			merged[n-1].w += p.w
			continue
		}
		merged = append(merged, p)
	}

	// pool adjacent violators
	type block struct {
		xMin, xMax, sum, w float64
	}
	blocks := make([]block, 0, len(merged))
	for _, p := range merged {
		blocks = append(blocks, block{xMin: p.x, xMax: p.x, sum: p.sum, w: p.w})
		for len(blocks) >= 2 {
			a, b := blocks[len(blocks)-2], blocks[len(blocks)-1]
			if a.sum/a.w <= b.sum/b.w {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{
				xMin: a.xMin, xMax: b.xMax,
				sum: a.sum + b.sum, w: a.w + b.w,
			})
		}
	}

	iso := &Isotonic{}
	for _, b := range blocks {
		v := b.sum / b.w
		iso.X = append(iso.X, b.xMin)
		iso.Y = append(iso.Y, v)
		if b.xMax != b.xMin {
			iso.X = append(iso.X, b.xMax)
			iso.Y = append(iso.Y, v)
		}
	}
	return iso, nil
}

// Predict maps a raw score to [0,1], interpolating linearly between knots
// and clamping outside the fitted range
func (iso *Isotonic) Predict(score float64) float64 {
	n := len(iso.X)
	if n == 0 {
		return 0
	}
	if score <= iso.X[0] {
		return clamp01(iso.Y[0])
	}
	if score >= iso.X[n-1] {
		return clamp01(iso.Y[n-1])
	}
	i := sort.SearchFloat64s(iso.X, score)
	x0, x1 := iso.X[i-1], iso.X[i]
	y0, y1 := iso.Y[i-1], iso.Y[i]
	if x1 == x0 {
		return clamp01(y1)
	}
	return clamp01(y0 + (y1-y0)*(score-x0)/(x1-x0))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
