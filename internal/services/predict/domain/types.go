// Package domain holds the prediction service types
package domain

import (
	"context"

	"defectwatch/internal/core/features"
	regdom "defectwatch/internal/services/registry/domain"
)

// Prediction statuses; an empty Status means a scored result
const (
	StatusNoModel = "no_model"
	StatusError   = "error"
)

// Prediction sources
const (
	SourceModel = "model"
	SourceMock  = "mock"
)

// Prediction is the scored outcome for one production record
type Prediction struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	DefectProbability float64  `json:"defect_probability"`
	DefectPredicted   bool     `json:"defect_predicted"`
	RiskLevel         string   `json:"risk_level"`
	ConfidencePct     float64  `json:"confidence_pct"`
	Recommendation    string   `json:"recommendation"`
	Source            string   `json:"source"`
	ModelAccuracy     *float64 `json:"model_accuracy,omitempty"`
}

// ModelInfo describes the tenant's active model, if any
type ModelInfo struct {
	Trained        bool            `json:"trained"`
	TenantID       int64           `json:"tenant_id"`
	Metrics        *regdom.Metrics `json:"metrics,omitempty"`
	SamplesTrained int             `json:"samples_trained,omitempty"`
	FeatureCols    []string        `json:"feature_cols,omitempty"`
	SavedAt        string          `json:"saved_at,omitempty"`
	Versions       []regdom.Meta   `json:"versions,omitempty"`
}

// PredictorPort scores records against the tenant's registered model
type PredictorPort interface {
	// PredictDefect never fails on an absent model; that outcome is a
	// Prediction with StatusNoModel
	PredictDefect(ctx context.Context, tenantID int64, rec features.RawRecord) (*Prediction, error)

	ModelInfo(ctx context.Context, tenantID int64) (*ModelInfo, error)
}
