// Package domain holds the training service types
package domain

import (
	"context"

	"defectwatch/internal/core/features"
	regdom "defectwatch/internal/services/registry/domain"
)

// Result summarizes a successful training run
type Result struct {
	Status            string             `json:"status"`
	VersionID         string             `json:"version_id"`
	ModelPath         string             `json:"model_path"`
	Metrics           regdom.Metrics     `json:"metrics"`
	SamplesTrained    int                `json:"samples_trained"`
	SamplesTested     int                `json:"samples_tested"`
	FeatureCols       []string           `json:"feature_cols"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	ClassDistribution map[string]int     `json:"class_distribution"`
}

// TrainerPort trains and registers a tenant's defect model
type TrainerPort interface {
	Train(ctx context.Context, tenantID int64, records []features.RawRecord) (*Result, error)
}
