package calibrate

import (
	"bytes"
	"encoding/gob"
	"errors"

	"defectwatch/internal/core/forest"
	"defectwatch/internal/core/mlstats"
)

// Config carries the forest hyperparameters and the fold count for the
// calibration cross-validation
type Config struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
	Folds    int
}

// Member pairs a forest trained on a fold's complement with the isotonic
// mapping fitted on that fold's held-out predictions
type Member struct {
	Forest *forest.Forest
	Iso    *Isotonic
}

// Calibrated averages calibrated probabilities over its members
type Calibrated struct {
	Members []*Member
}

// Train fits a calibrated classifier: stratified k-fold over y, one member
// per usable fold. Folds whose complement collapses to one class are skipped
func Train(x [][]float64, y []int, cfg Config) (*Calibrated, error) {
	if cfg.Folds < 2 {
		cfg.Folds = 3
	}
	folds := mlstats.StratifiedKFold(y, cfg.Folds, cfg.Seed)

	c := &Calibrated{}
	for f, hold := range folds {
		if len(hold) == 0 {
			continue
		}
		inHold := make(map[int]bool, len(hold))
		for _, i := range hold {
			inHold[i] = true
		}
		var tx [][]float64
		var ty []int
		for i := range x {
			if !inHold[i] {
				tx = append(tx, x[i])
				ty = append(ty, y[i])
			}
		}

		fr := forest.New(
			forest.WithTrees(cfg.Trees),
			forest.WithMaxDepth(cfg.MaxDepth),
			forest.WithMinLeaf(cfg.MinLeaf),
			forest.WithSeed(cfg.Seed+int64(f)),
		)
		if err := fr.Fit(tx, ty); err != nil {
			continue
		}

		raw := make([]float64, len(hold))
		holdY := make([]int, len(hold))
		for j, i := range hold {
			p, err := fr.ProbPositive(x[i])
			if err != nil {
				return nil, err
			}
			raw[j] = p
			holdY[j] = y[i]
		}
		iso, err := FitIsotonic(raw, holdY)
		if err != nil {
			continue
		}
		c.Members = append(c.Members, &Member{Forest: fr, Iso: iso})
	}

	if len(c.Members) == 0 {
		return nil, errors.New("no calibration fold produced a usable member")
	}
	return c, nil
}

// ProbPositive returns the mean calibrated positive probability
func (c *Calibrated) ProbPositive(sample []float64) (float64, error) {
	if len(c.Members) == 0 {
		return 0, errors.New("model not trained")
	}
	var sum float64
	for _, m := range c.Members {
		raw, err := m.Forest.ProbPositive(sample)
		if err != nil {
			return 0, err
		}
		sum += m.Iso.Predict(raw)
	}
	return sum / float64(len(c.Members)), nil
}

type memberWire struct {
	Forest []byte
	Iso    *Isotonic
}

// Encode serializes the ensemble
func (c *Calibrated) Encode() ([]byte, error) {
	wire := make([]memberWire, len(c.Members))
	for i, m := range c.Members {
		blob, err := m.Forest.Save()
		if err != nil {
			return nil, err
		}
		wire[i] = memberWire{Forest: blob, Iso: m.Iso}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode restores an ensemble produced by Encode
func Decode(b []byte) (*Calibrated, error) {
	var wire []memberWire
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&wire); err != nil {
		return nil, err
	}
	c := &Calibrated{Members: make([]*Member, len(wire))}
	for i, w := range wire {
		fr := forest.New()
		if err := fr.Load(w.Forest); err != nil {
			return nil, err
		}
		c.Members[i] = &Member{Forest: fr, Iso: w.Iso}
	}
	if len(c.Members) == 0 {
		return nil, errors.New("decoded ensemble has no members")
	}
	return c, nil
}
