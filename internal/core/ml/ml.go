// Package ml is the seam between the lifecycle services and the model
// implementations. Services speak to a Backend; the real backend wires the
// calibrated forest, the disabled one reports the capability as absent so
// callers can fall back to heuristics.
package ml

import (
	"defectwatch/internal/core/calibrate"
	"defectwatch/internal/core/forest"
	perr "defectwatch/internal/platform/errors"
)

// Params are the classifier hyperparameters
type Params struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
	Folds    int
}

// DefaultParams mirrors the production training configuration
func DefaultParams() Params {
	return Params{Trees: 200, MaxDepth: 12, MinLeaf: 5, Seed: 42, Folds: 3}
}

// Classifier scores a feature vector with a positive-class probability
type Classifier interface {
	ProbPositive(sample []float64) (float64, error)
}

// Backend is the trainable-model capability
type Backend interface {
	// Available reports whether real models can be trained and scored
	Available() bool

	// TrainCalibrated fits the calibrated classifier on x, y
	TrainCalibrated(x [][]float64, y []int, p Params) (Classifier, error)

	// FitImportances fits a plain forest on the full data and returns
	// normalized feature importances
	FitImportances(x [][]float64, y []int, p Params) ([]float64, error)

	// EncodeClassifier and DecodeClassifier serialize models for the registry
	EncodeClassifier(c Classifier) ([]byte, error)
	DecodeClassifier(b []byte) (Classifier, error)
}

type real struct{}

// NewReal returns the working backend
func NewReal() Backend { return real{} }

func (real) Available() bool { return true }

func (real) TrainCalibrated(x [][]float64, y []int, p Params) (Classifier, error) {
	c, err := calibrate.Train(x, y, calibrate.Config{
		Trees:    p.Trees,
		MaxDepth: p.MaxDepth,
		MinLeaf:  p.MinLeaf,
		Seed:     p.Seed,
		Folds:    p.Folds,
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "train calibrated classifier")
	}
	return c, nil
}

func (real) FitImportances(x [][]float64, y []int, p Params) ([]float64, error) {
	f := forest.New(
		forest.WithTrees(p.Trees),
		forest.WithMaxDepth(p.MaxDepth),
		forest.WithMinLeaf(p.MinLeaf),
		forest.WithSeed(p.Seed),
	)
	if err := f.Fit(x, y); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "fit importance forest")
	}
	return f.Importances(), nil
}

func (real) EncodeClassifier(c Classifier) ([]byte, error) {
	cal, ok := c.(*calibrate.Calibrated)
	if !ok {
		return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "unsupported classifier type %T", c)
	}
	b, err := cal.Encode()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "encode classifier")
	}
	return b, nil
}

func (real) DecodeClassifier(b []byte) (Classifier, error) {
	c, err := calibrate.Decode(b)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeCorruptArtifact, "decode classifier")
	}
	return c, nil
}

type disabled struct{}

// NewDisabled returns a backend that reports the ML capability as absent.
// Every operation fails with a capability error
func NewDisabled() Backend { return disabled{} }

func (disabled) Available() bool { return false }

func (disabled) TrainCalibrated([][]float64, []int, Params) (Classifier, error) {
	return nil, perr.CapabilityUnavailablef("ml backend disabled")
}

func (disabled) FitImportances([][]float64, []int, Params) ([]float64, error) {
	return nil, perr.CapabilityUnavailablef("ml backend disabled")
}

func (disabled) EncodeClassifier(Classifier) ([]byte, error) {
	return nil, perr.CapabilityUnavailablef("ml backend disabled")
}

func (disabled) DecodeClassifier([]byte) (Classifier, error) {
	return nil, perr.CapabilityUnavailablef("ml backend disabled")
}
