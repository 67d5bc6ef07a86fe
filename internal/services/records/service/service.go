// Package service implements the records reader and the best-effort audit
// trail over Postgres and Clickhouse
package service

import (
	"context"
	"encoding/json"
	"time"

	"defectwatch/internal/core/features"
	"defectwatch/internal/modkit/repokit"
	"defectwatch/internal/platform/logger"
	anomdom "defectwatch/internal/services/anomaly/domain"
	preddom "defectwatch/internal/services/predict/domain"
	dom "defectwatch/internal/services/records/domain"
	"defectwatch/internal/services/records/repo"
)

// Service implements domain.ReaderPort and domain.AuditPort
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Storage]

	// events is nil when clickhouse is disabled
	events *repo.CH

	log *logger.Logger
	now func() time.Time
}

// New constructs the records service. events may be nil
func New(db repokit.TxRunner, events *repo.CH) *Service {
	return &Service{
		db:     db,
		binder: repo.NewPG(),
		events: events,
		log:    logger.Named("records"),
		now:    time.Now,
	}
}

func (s *Service) store() repo.Storage { return s.binder.Bind(s.db) }

// ListActiveTenants implements domain.ReaderPort
func (s *Service) ListActiveTenants(ctx context.Context) ([]int64, error) {
	return s.store().ListActiveTenants(ctx)
}

// TrainingData implements domain.ReaderPort
func (s *Service) TrainingData(ctx context.Context, tenantID int64) ([]features.RawRecord, error) {
	return s.store().TrainingData(ctx, tenantID)
}

// WindowData implements domain.ReaderPort
func (s *Service) WindowData(ctx context.Context, tenantID int64, days int) ([]features.RawRecord, error) {
	return s.store().WindowData(ctx, tenantID, days)
}

// RecordTraining implements domain.AuditPort
func (s *Service) RecordTraining(ctx context.Context, tenantID int64, modelPath string, accuracy float64) {
	if err := s.store().InsertModelStamp(ctx, tenantID, modelPath, accuracy); err != nil {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("model stamp persist failed")
	}
}

// RecordPrediction implements domain.AuditPort
func (s *Service) RecordPrediction(ctx context.Context, tenantID int64, rec features.RawRecord, p *preddom.Prediction) {
	input, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn().Err(err).Msg("prediction input marshal failed")
		return
	}
	result, err := json.Marshal(p)
	if err != nil {
		s.log.Warn().Err(err).Msg("prediction result marshal failed")
		return
	}
	if err := s.store().InsertPrediction(ctx, tenantID, input, result, p.DefectProbability); err != nil {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("prediction persist failed")
	}

	if s.events == nil || p.Status != "" {
		return
	}
	ev := dom.PredictionEvent{
		TenantID:    tenantID,
		At:          s.now().UTC(),
		Source:      p.Source,
		RiskLevel:   p.RiskLevel,
		Probability: p.DefectProbability,
		Machine:     rec.Machine(),
	}
	if err := s.events.WritePredictionEvents(ctx, []dom.PredictionEvent{ev}); err != nil {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("prediction event append failed")
	}
}

// RecordAlerts implements domain.AuditPort
func (s *Service) RecordAlerts(ctx context.Context, tenantID int64, alerts []anomdom.Alert) {
	st := s.store()
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			s.log.Warn().Err(err).Msg("alert marshal failed")
			continue
		}
		if err := st.InsertAlert(ctx, tenantID, a, payload); err != nil {
			s.log.Warn().Err(err).
				Int64("tenant_id", tenantID).
				Str("machine", a.Machine).
				Msg("alert persist failed")
		}
	}
}
