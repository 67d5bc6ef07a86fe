// Package domain holds the anomaly detection types
package domain

import (
	"context"

	"defectwatch/internal/core/features"
)

// Scored is one record with its anomaly verdict
type Scored struct {
	Record    features.RawRecord
	Score     float64
	IsAnomaly bool
}

// Alert is the operator-facing form of a flagged record
type Alert struct {
	DefectRecordID    *int64   `json:"defect_record_id"`
	Date              string   `json:"date"`
	Machine           string   `json:"machine"`
	Shift             string   `json:"shift"`
	DefectRate        float64  `json:"defect_rate"`
	QuantityDefective int      `json:"quantity_defective"`
	Severity          string   `json:"severity"`
	AnomalyScore      float64  `json:"anomaly_score"`
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity"`
	Description       string   `json:"description"`
}

// DetectorPort scores batches for anomalous production patterns
type DetectorPort interface {
	// Detect returns one Scored per record, or nil when the batch has
	// fewer than two usable numeric columns
	Detect(ctx context.Context, records []features.RawRecord, contamination float64) ([]Scored, error)

	// FormatAlerts turns the flagged subset into alerts, most anomalous first
	FormatAlerts(scored []Scored) []Alert
}
