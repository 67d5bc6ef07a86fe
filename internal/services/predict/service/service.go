// Package service implements real-time defect scoring against the tenant's
// registered model, with a deterministic heuristic fallback when the ML
// backend is unavailable
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"defectwatch/internal/core/features"
	"defectwatch/internal/core/ml"
	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/logger"
	dom "defectwatch/internal/services/predict/domain"
	regdom "defectwatch/internal/services/registry/domain"
)

// Service implements domain.PredictorPort
type Service struct {
	backend  ml.Backend
	registry regdom.RegistryPort
	log      *logger.Logger
}

// New constructs the prediction service
func New(backend ml.Backend, registry regdom.RegistryPort) *Service {
	return &Service{backend: backend, registry: registry, log: logger.Named("predict")}
}

// PredictDefect implements domain.PredictorPort
func (s *Service) PredictDefect(ctx context.Context, tenantID int64, rec features.RawRecord) (*dom.Prediction, error) {
	if !s.backend.Available() {
		return mockPrediction(rec), nil
	}

	art, ok, err := s.registry.Load(ctx, tenantID, regdom.KindDefect)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &dom.Prediction{
			Status: dom.StatusNoModel,
			Error:  "no trained model found, train one first",
		}, nil
	}

	clf, err := s.backend.DecodeClassifier(art.Model)
	if err != nil {
		// an unreadable blob downgrades to no model, same as a missing one
		if perr.IsCode(err, perr.ErrorCodeCorruptArtifact) {
			s.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("model artifact unreadable")
			return &dom.Prediction{
				Status: dom.StatusNoModel,
				Error:  "no trained model found, train one first",
			}, nil
		}
		return nil, err
	}

	encoders := features.Encoders{}
	if len(art.Encoders) > 0 {
		if encs, err := features.DecodeEncoders(art.Encoders); err == nil {
			encoders = encs
		} else {
			s.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("could not load encoders")
		}
	}

	ds, _ := features.Prepare([]features.RawRecord{rec}, false, encoders)
	row := ds.Align(art.Meta.FeatureCols)[0]

	prob, err := clf.ProbPositive(row)
	if err != nil {
		s.log.Error().Err(err).Int64("tenant_id", tenantID).Msg("prediction failed")
		return &dom.Prediction{Status: dom.StatusError, Error: err.Error()}, nil
	}
	prob = round(prob, 4)

	acc := art.Meta.Metrics.Accuracy
	return &dom.Prediction{
		DefectProbability: prob,
		DefectPredicted:   prob > 0.50,
		RiskLevel:         RiskLevel(prob),
		ConfidencePct:     round(prob*100, 1),
		Recommendation:    Recommendation(prob),
		Source:            dom.SourceModel,
		ModelAccuracy:     &acc,
	}, nil
}

// ModelInfo implements domain.PredictorPort
func (s *Service) ModelInfo(ctx context.Context, tenantID int64) (*dom.ModelInfo, error) {
	if !s.registry.Exists(ctx, tenantID, regdom.KindDefect) {
		return &dom.ModelInfo{Trained: false, TenantID: tenantID}, nil
	}

	art, ok, err := s.registry.Load(ctx, tenantID, regdom.KindDefect)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &dom.ModelInfo{Trained: false, TenantID: tenantID}, nil
	}

	versions, err := s.registry.ListVersions(ctx, tenantID, regdom.KindDefect)
	if err != nil {
		return nil, err
	}
	return &dom.ModelInfo{
		Trained:        true,
		TenantID:       tenantID,
		Metrics:        &art.Meta.Metrics,
		SamplesTrained: art.Meta.SamplesTrain,
		FeatureCols:    art.Meta.FeatureCols,
		SavedAt:        art.Meta.SavedAt,
		Versions:       versions,
	}, nil
}

// RiskLevel maps a defect probability to its tier
func RiskLevel(prob float64) string {
	switch {
	case prob > 0.75:
		return "critical"
	case prob > 0.55:
		return "high"
	case prob > 0.30:
		return "medium"
	default:
		return "low"
	}
}

// Recommendation returns the operator guidance for a probability tier
func Recommendation(prob float64) string {
	switch {
	case prob > 0.75:
		return "STOP production. Inspect machine and material batch immediately."
	case prob > 0.55:
		return "HIGH RISK. Increase sampling rate and alert supervisor now."
	case prob > 0.30:
		return "MEDIUM. Monitor closely and review calibration and operator logs."
	default:
		return "LOW. Conditions acceptable, continue standard monitoring."
	}
}

// mockPrediction is the fallback when no backend is available. It is
// deterministic per record so repeated calls agree
func mockPrediction(rec features.RawRecord) *dom.Prediction {
	rng := rand.New(rand.NewSource(int64(hashRecord(rec))))
	prob := round(0.05+rng.Float64()*0.40, 4)

	risk := "low"
	if prob > 0.25 {
		risk = "medium"
	}
	return &dom.Prediction{
		DefectProbability: prob,
		DefectPredicted:   prob > 0.35,
		RiskLevel:         risk,
		ConfidencePct:     round(prob*100, 1),
		Recommendation:    Recommendation(prob),
		Source:            dom.SourceMock,
	}
}

func hashRecord(rec features.RawRecord) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s|%.4f|%.4f|%.4f",
		rec.ID, rec.Machine(), rec.ShiftName(),
		deref(rec.Temperature), deref(rec.Humidity), rec.ComputedDefectRate())
	return h.Sum64()
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
