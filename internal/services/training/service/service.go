// Package service implements defect-model training: target derivation,
// feature preparation, a stratified held-out evaluation and registration
// of the resulting version
package service

import (
	"context"
	"time"

	"defectwatch/internal/core/features"
	"defectwatch/internal/core/ml"
	"defectwatch/internal/core/mlstats"
	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/logger"
	regdom "defectwatch/internal/services/registry/domain"
	dom "defectwatch/internal/services/training/domain"
)

// MinTrainingRows is the floor below which training refuses to run
const MinTrainingRows = 50

// Config for the training service
type Config struct {
	Params ml.Params

	// TestFraction is the held-out share of the stratified split
	TestFraction float64

	// SplitSeed fixes the split for reproducible evaluations
	SplitSeed int64
}

// Service implements domain.TrainerPort
type Service struct {
	backend  ml.Backend
	registry regdom.RegistryPort
	cfg      Config
	log      *logger.Logger
}

// New constructs the training service
func New(backend ml.Backend, registry regdom.RegistryPort, cfg Config) *Service {
	if cfg.Params.Trees == 0 {
		cfg.Params = ml.DefaultParams()
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.SplitSeed == 0 {
		cfg.SplitSeed = 42
	}
	return &Service{
		backend:  backend,
		registry: registry,
		cfg:      cfg,
		log:      logger.Named("training"),
	}
}

// Train implements domain.TrainerPort. Failed preconditions leave the
// tenant's registered model untouched
func (s *Service) Train(ctx context.Context, tenantID int64, records []features.RawRecord) (*dom.Result, error) {
	start := time.Now()

	if len(records) < MinTrainingRows {
		return nil, perr.InsufficientDataf(
			"training needs at least %d records, got %d", MinTrainingRows, len(records))
	}

	labels, ok := features.DeriveTargets(records)
	if !ok {
		return nil, perr.InsufficientDataf("records carry no defect signal to train on")
	}
	var pos int
	for _, l := range labels {
		pos += l
	}
	if pos == 0 || pos == len(labels) {
		return nil, perr.SingleClassf("training target has a single class")
	}

	if !s.backend.Available() {
		return nil, perr.CapabilityUnavailablef("ml backend disabled, cannot train")
	}

	ds, encs := features.Prepare(records, true, nil)
	if len(ds.Columns) == 0 {
		return nil, perr.InvalidArgf("records produced no usable feature columns")
	}

	trainIdx, testIdx := mlstats.StratifiedSplit(labels, s.cfg.TestFraction, s.cfg.SplitSeed)
	xTrain, yTrain := subset(ds.Rows, labels, trainIdx)
	xTest, yTest := subset(ds.Rows, labels, testIdx)

	clf, err := s.backend.TrainCalibrated(xTrain, yTrain, s.cfg.Params)
	if err != nil {
		return nil, err
	}

	probs := make([]float64, len(xTest))
	preds := make([]int, len(xTest))
	for i, row := range xTest {
		p, err := clf.ProbPositive(row)
		if err != nil {
			return nil, err
		}
		probs[i] = p
		if p > 0.5 {
			preds[i] = 1
		}
	}
	metrics := regdom.Metrics{
		Accuracy:  mlstats.Accuracy(yTest, preds),
		Precision: mlstats.Precision(yTest, preds),
		Recall:    mlstats.Recall(yTest, preds),
		F1:        mlstats.F1(yTest, preds),
	}
	if auc, ok := mlstats.ROCAUC(yTest, probs); ok {
		metrics.ROCAUC = &auc
	}

	// importances come from an uncalibrated fit on the training split,
	// since the calibrated ensemble has no single importance vector
	importance := map[string]float64{}
	if imp, err := s.backend.FitImportances(xTrain, yTrain, s.cfg.Params); err == nil {
		for j, col := range ds.Columns {
			if j < len(imp) {
				importance[col] = imp[j]
			}
		}
	} else {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("feature importance fit failed")
	}

	modelBlob, err := s.backend.EncodeClassifier(clf)
	if err != nil {
		return nil, err
	}
	encBlob, err := features.EncodeEncoders(encs)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "encode feature encoders")
	}

	meta := &regdom.Meta{
		TenantID:          tenantID,
		Kind:              regdom.KindDefect,
		FeatureCols:       ds.Columns,
		Metrics:           metrics,
		SamplesTrain:      len(trainIdx),
		SamplesTest:       len(testIdx),
		FeatureImportance: importance,
		ClassDistribution: map[string]int{
			"0": len(labels) - pos,
			"1": pos,
		},
	}
	art := &regdom.Artifact{Model: modelBlob, Encoders: encBlob, Meta: meta}
	if err := s.registry.Save(ctx, art); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("tenant_id", tenantID).
		Str("version_id", meta.VersionID).
		Int("samples", len(records)).
		Float64("accuracy", metrics.Accuracy).
		Dur("elapsed", time.Since(start)).
		Msg("defect model trained")

	return &dom.Result{
		Status:            "success",
		VersionID:         meta.VersionID,
		ModelPath:         meta.ModelPath,
		Metrics:           metrics,
		SamplesTrained:    len(trainIdx),
		SamplesTested:     len(testIdx),
		FeatureCols:       ds.Columns,
		FeatureImportance: importance,
		ClassDistribution: meta.ClassDistribution,
	}, nil
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	sx := make([][]float64, len(idx))
	sy := make([]int, len(idx))
	for i, j := range idx {
		sx[i] = x[j]
		sy[i] = y[j]
	}
	return sx, sy
}
