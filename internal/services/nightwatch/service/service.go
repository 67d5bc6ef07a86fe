// Package service implements the nightwatch sweeps: the weekly retrain of
// every active tenant and the daily anomaly scan, runnable one-shot or as
// a long-lived scheduler loop
package service

import (
	"context"
	"time"

	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/logger"
	anomdom "defectwatch/internal/services/anomaly/domain"
	dom "defectwatch/internal/services/nightwatch/domain"
	recdom "defectwatch/internal/services/records/domain"
	traindom "defectwatch/internal/services/training/domain"
)

// minScanRows is the floor below which a tenant's window is skipped
const minScanRows = 10

// Config controls the sweep schedule
type Config struct {
	// RetrainWeekday and RetrainHour place the weekly retrain (UTC)
	RetrainWeekday time.Weekday
	RetrainHour    int

	// ScanHour places the daily anomaly scan (UTC)
	ScanHour int

	// ScanDays is the trailing window for the daily scan
	ScanDays int

	// Contamination for the daily scan
	Contamination float64

	// Tick is the scheduler poll interval
	Tick time.Duration
}

// Service implements domain.SweeperPort
type Service struct {
	reader   recdom.ReaderPort
	audit    recdom.AuditPort
	trainer  traindom.TrainerPort
	detector anomdom.DetectorPort
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// New constructs the nightwatch service
func New(
	reader recdom.ReaderPort,
	audit recdom.AuditPort,
	trainer traindom.TrainerPort,
	detector anomdom.DetectorPort,
	cfg Config,
) *Service {
	if cfg.RetrainHour == 0 {
		cfg.RetrainHour = 2
	}
	if cfg.ScanHour == 0 {
		cfg.ScanHour = 6
	}
	if cfg.ScanDays <= 0 {
		cfg.ScanDays = 1
	}
	if cfg.Contamination <= 0 {
		cfg.Contamination = 0.08
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	return &Service{
		reader:   reader,
		audit:    audit,
		trainer:  trainer,
		detector: detector,
		cfg:      cfg,
		log:      logger.Named("nightwatch"),
		now:      time.Now,
	}
}

// RetrainAll implements domain.SweeperPort
func (s *Service) RetrainAll(ctx context.Context) (*dom.SweepResult, error) {
	tenants, err := s.reader.ListActiveTenants(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("tenants", len(tenants)).Msg("weekly retrain sweep starting")

	res := &dom.SweepResult{Tenants: len(tenants)}
	for _, id := range tenants {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome := s.retrainTenant(ctx, id)
		res.Outcomes = append(res.Outcomes, outcome)
		switch outcome.Status {
		case "success":
			res.Succeeded++
		case "skipped":
			res.Skipped++
		default:
			res.Failed++
		}
	}
	s.log.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("weekly retrain sweep finished")
	return res, nil
}

func (s *Service) retrainTenant(ctx context.Context, tenantID int64) dom.SweepOutcome {
	records, err := s.reader.TrainingData(ctx, tenantID)
	if err != nil {
		s.log.Error().Err(err).Int64("tenant_id", tenantID).Msg("training data fetch failed")
		return dom.SweepOutcome{TenantID: tenantID, Status: "failed", Error: err.Error()}
	}

	result, err := s.trainer.Train(ctx, tenantID, records)
	if err != nil {
		// thin or one-sided tenants are an expected state, not a failure
		if perr.IsCode(err, perr.ErrorCodeInsufficientData) || perr.IsCode(err, perr.ErrorCodeSingleClass) {
			s.log.Info().Err(err).Int64("tenant_id", tenantID).Msg("tenant skipped")
			return dom.SweepOutcome{TenantID: tenantID, Status: "skipped", Error: err.Error()}
		}
		s.log.Error().Err(err).Int64("tenant_id", tenantID).Msg("retrain failed")
		return dom.SweepOutcome{TenantID: tenantID, Status: "failed", Error: err.Error()}
	}

	s.audit.RecordTraining(ctx, tenantID, result.ModelPath, result.Metrics.Accuracy)
	s.log.Info().
		Int64("tenant_id", tenantID).
		Float64("accuracy", result.Metrics.Accuracy).
		Msg("tenant retrained")
	return dom.SweepOutcome{TenantID: tenantID, Status: "success"}
}

// ScanAll implements domain.SweeperPort
func (s *Service) ScanAll(ctx context.Context) (*dom.SweepResult, error) {
	tenants, err := s.reader.ListActiveTenants(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("tenants", len(tenants)).Msg("daily anomaly scan starting")

	res := &dom.SweepResult{Tenants: len(tenants)}
	for _, id := range tenants {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome := s.scanTenant(ctx, id)
		res.Outcomes = append(res.Outcomes, outcome)
		switch outcome.Status {
		case "success":
			res.Succeeded++
		case "skipped":
			res.Skipped++
		default:
			res.Failed++
		}
	}
	s.log.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("daily anomaly scan finished")
	return res, nil
}

func (s *Service) scanTenant(ctx context.Context, tenantID int64) dom.SweepOutcome {
	records, err := s.reader.WindowData(ctx, tenantID, s.cfg.ScanDays)
	if err != nil {
		s.log.Error().Err(err).Int64("tenant_id", tenantID).Msg("window fetch failed")
		return dom.SweepOutcome{TenantID: tenantID, Status: "failed", Error: err.Error()}
	}
	if len(records) < minScanRows {
		return dom.SweepOutcome{TenantID: tenantID, Status: "skipped"}
	}

	scored, err := s.detector.Detect(ctx, records, s.cfg.Contamination)
	if err != nil {
		s.log.Error().Err(err).Int64("tenant_id", tenantID).Msg("anomaly scan failed")
		return dom.SweepOutcome{TenantID: tenantID, Status: "failed", Error: err.Error()}
	}
	alerts := s.detector.FormatAlerts(scored)
	if len(alerts) > 0 {
		s.audit.RecordAlerts(ctx, tenantID, alerts)
	}
	s.log.Info().
		Int64("tenant_id", tenantID).
		Int("records", len(records)).
		Int("alerts", len(alerts)).
		Msg("tenant scanned")
	return dom.SweepOutcome{TenantID: tenantID, Status: "success"}
}

// Run polls the clock and fires the weekly retrain and daily scan at their
// scheduled hours. It returns when ctx is done
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().
		Str("retrain", s.cfg.RetrainWeekday.String()).
		Int("retrain_hour", s.cfg.RetrainHour).
		Int("scan_hour", s.cfg.ScanHour).
		Msg("nightwatch scheduler started")

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	var lastRetrain, lastScan string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := s.now().UTC()
			day := now.Format("2006-01-02")

			if now.Weekday() == s.cfg.RetrainWeekday && now.Hour() == s.cfg.RetrainHour && lastRetrain != day {
				lastRetrain = day
				if _, err := s.RetrainAll(ctx); err != nil && ctx.Err() == nil {
					s.log.Error().Err(err).Msg("retrain sweep error")
				}
			}
			if now.Hour() == s.cfg.ScanHour && lastScan != day {
				lastScan = day
				if _, err := s.ScanAll(ctx); err != nil && ctx.Err() == nil {
					s.log.Error().Err(err).Msg("scan sweep error")
				}
			}
		}
	}
}
