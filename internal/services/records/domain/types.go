// Package domain holds the production-records types and ports
package domain

import (
	"context"
	"time"

	anomdom "defectwatch/internal/services/anomaly/domain"
	preddom "defectwatch/internal/services/predict/domain"

	"defectwatch/internal/core/features"
)

// ReaderPort loads tenants and their production records
type ReaderPort interface {
	// ListActiveTenants returns the ids of tenants eligible for sweeps
	ListActiveTenants(ctx context.Context) ([]int64, error)

	// TrainingData returns the tenant's full training window, newest
	// first, capped at the repository's hard limit
	TrainingData(ctx context.Context, tenantID int64) ([]features.RawRecord, error)

	// WindowData returns records from the trailing number of days
	WindowData(ctx context.Context, tenantID int64, days int) ([]features.RawRecord, error)
}

// PredictionEvent is the columnar audit row emitted per scored prediction
type PredictionEvent struct {
	TenantID    int64
	At          time.Time
	Source      string
	RiskLevel   string
	Probability float64
	Machine     string
}

// AuditPort records lifecycle outcomes. Implementations are best effort;
// audit failures never fail the operation being audited
type AuditPort interface {
	RecordTraining(ctx context.Context, tenantID int64, modelPath string, accuracy float64)
	RecordPrediction(ctx context.Context, tenantID int64, rec features.RawRecord, p *preddom.Prediction)
	RecordAlerts(ctx context.Context, tenantID int64, alerts []anomdom.Alert)
}
