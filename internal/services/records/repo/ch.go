package repo

import (
	"context"

	"defectwatch/internal/platform/store"
	dom "defectwatch/internal/services/records/domain"
)

// CH appends prediction events to the columnar audit table
type CH struct {
	ch store.Clickhouse
}

// NewCH constructs the clickhouse event sink
func NewCH(ch store.Clickhouse) *CH { return &CH{ch: ch} }

var predictionEventCols = []string{
	"tenant_id", "ts", "source", "risk_level", "probability", "machine",
}

// WritePredictionEvents appends a batch of scored-prediction events
func (c *CH) WritePredictionEvents(ctx context.Context, events []dom.PredictionEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{e.TenantID, e.At, e.Source, e.RiskLevel, e.Probability, e.Machine}
	}
	return c.ch.Insert(ctx, "prediction_events", predictionEventCols, rows)
}
