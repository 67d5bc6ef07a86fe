// Package service implements batch anomaly detection: standardized numeric
// features scored by an isolation forest, with severity-bucketed alerts
package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"defectwatch/internal/core/features"
	"defectwatch/internal/core/iforest"
	"defectwatch/internal/core/ml"
	"defectwatch/internal/core/mlstats"
	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/logger"
	dom "defectwatch/internal/services/anomaly/domain"
)

// DefaultContamination is the expected anomaly share when the caller
// does not override it
const DefaultContamination = 0.08

// numericFeatures are the columns the detector considers, in scoring order
var numericFeatures = []string{
	features.ColQuantityDefective,
	features.ColQuantityProduced,
	features.ColDefectRate,
	features.ColTemperature,
	features.ColHumidity,
	features.ColVibration,
	features.ColPressure,
}

// Config for the anomaly service
type Config struct {
	Trees int
	Seed  int64
}

// Service implements domain.DetectorPort
type Service struct {
	backend ml.Backend
	cfg     Config
	log     *logger.Logger
}

// New constructs the anomaly service
func New(backend ml.Backend, cfg Config) *Service {
	if cfg.Trees == 0 {
		cfg.Trees = 200
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return &Service{backend: backend, cfg: cfg, log: logger.Named("anomaly")}
}

// Detect implements domain.DetectorPort. Batches without at least two
// usable numeric columns yield nil rather than an error
func (s *Service) Detect(_ context.Context, records []features.RawRecord, contamination float64) ([]dom.Scored, error) {
	if !s.backend.Available() || len(records) == 0 {
		return nil, nil
	}
	if contamination <= 0 || contamination >= 0.5 {
		contamination = DefaultContamination
	}

	cols, derivedRate := availableColumns(records)
	if len(cols) < 2 {
		return nil, nil
	}

	x := make([][]float64, len(records))
	for i := range records {
		r := &records[i]
		row := make([]float64, len(cols))
		for j, c := range cols {
			switch {
			case c == features.ColDefectRate && derivedRate:
				row[j] = r.ComputedDefectRate()
			case c == features.ColDefectRate:
				if r.DefectRate != nil {
					row[j] = *r.DefectRate
				}
			default:
				if p := r.Numeric(c); p != nil {
					row[j] = *p
				}
			}
		}
		x[i] = row
	}
	scaled := mlstats.FitScaler(x).Transform(x)

	f := iforest.New(
		iforest.WithTrees(s.cfg.Trees),
		iforest.WithSeed(s.cfg.Seed),
		iforest.WithContamination(contamination),
	)
	if err := f.Fit(scaled); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "fit isolation forest")
	}
	scores, err := f.Scores(scaled)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "score batch")
	}

	out := make([]dom.Scored, len(records))
	var flagged int
	for i := range records {
		out[i] = dom.Scored{
			Record:    records[i],
			Score:     scores[i],
			IsAnomaly: f.IsAnomaly(scores[i]),
		}
		if out[i].IsAnomaly {
			flagged++
		}
	}
	s.log.Debug().
		Int("records", len(records)).
		Int("flagged", flagged).
		Float64("contamination", contamination).
		Msg("anomaly detection complete")
	return out, nil
}

// FormatAlerts implements domain.DetectorPort
func (s *Service) FormatAlerts(scored []dom.Scored) []dom.Alert {
	var alerts []dom.Alert
	for _, sc := range scored {
		if !sc.IsAnomaly {
			continue
		}
		r := sc.Record

		severity := "medium"
		switch {
		case sc.Score < -0.6:
			severity = "critical"
		case sc.Score < -0.4:
			severity = "high"
		}

		rate := r.ComputedDefectRate()
		var qtyDefective int
		if r.QuantityDefective != nil {
			qtyDefective = int(*r.QuantityDefective)
		}
		var recID *int64
		if r.ID != 0 {
			id := r.ID
			recID = &id
		}
		var date string
		if !r.Date.IsZero() {
			date = r.Date.Format("2006-01-02")
		}

		alerts = append(alerts, dom.Alert{
			DefectRecordID:    recID,
			Date:              date,
			Machine:           r.Machine(),
			Shift:             r.ShiftName(),
			DefectRate:        round4(rate),
			QuantityDefective: qtyDefective,
			Severity:          severity,
			AnomalyScore:      round4(sc.Score),
			Temperature:       r.Temperature,
			Humidity:          r.Humidity,
			Description: fmt.Sprintf(
				"anomalous production pattern on machine %s: defect rate %.2f%%",
				r.Machine(), rate*100),
		})
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].AnomalyScore < alerts[j].AnomalyScore
	})
	return alerts
}

// availableColumns returns the usable numeric columns. derivedRate is true
// when defect_rate is recomputed from the quantity columns; supplied rates
// are used as given otherwise
func availableColumns(records []features.RawRecord) (cols []string, derivedRate bool) {
	present := make(map[string]bool, len(numericFeatures))
	var hasProduced, hasDefective bool
	for i := range records {
		r := &records[i]
		for _, c := range numericFeatures {
			if !present[c] && r.Numeric(c) != nil {
				present[c] = true
			}
		}
		hasProduced = hasProduced || r.QuantityProduced != nil
		hasDefective = hasDefective || r.QuantityDefective != nil
	}
	derivedRate = hasProduced && hasDefective
	if derivedRate {
		present[features.ColDefectRate] = true
	}

	cols = make([]string, 0, len(numericFeatures))
	for _, c := range numericFeatures {
		if present[c] {
			cols = append(cols, c)
		}
	}
	return cols, derivedRate
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
