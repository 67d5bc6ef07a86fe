// Package repo provides the records repository implementations
package repo

import (
	"context"
	"time"

	"defectwatch/internal/core/features"
	"defectwatch/internal/modkit/repokit"
	anomdom "defectwatch/internal/services/anomaly/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: repokit.RequireQueryer(q)} }

// Storage defines the records repository
type Storage interface {
	ListActiveTenants(ctx context.Context) ([]int64, error)
	TrainingData(ctx context.Context, tenantID int64) ([]features.RawRecord, error)
	WindowData(ctx context.Context, tenantID int64, days int) ([]features.RawRecord, error)

	InsertModelStamp(ctx context.Context, tenantID int64, modelPath string, accuracy float64) error
	InsertPrediction(ctx context.Context, tenantID int64, input, result []byte, confidence float64) error
	InsertAlert(ctx context.Context, tenantID int64, a anomdom.Alert, payload []byte) error
}

const recordsSelect = `
	SELECT
		dr.id,
		dr.defect_date,
		dr.quantity_defective::float8,
		dr.quantity_produced::float8,
		dr.shift,
		m.code AS machine_code,
		u.name AS operator_name,
		pr.material_batch,
		pr.temperature::float8,
		pr.humidity::float8,
		dc.code AS defect_code,
		dr.quantity_defective > 0 AS has_defect,
		CASE WHEN pr.actual_quantity > 0
			THEN dr.quantity_defective::float8 / NULLIF(pr.actual_quantity, 0)
			ELSE 0 END AS defect_rate
	FROM defect_records dr
	LEFT JOIN machines m ON m.id = dr.machine_id
	LEFT JOIN users u ON u.id = dr.operator_id
	LEFT JOIN production_records pr ON pr.id = dr.production_record_id
	LEFT JOIN defect_codes dc ON dc.id = dr.defect_code_id
	WHERE dr.factory_id = $1
	  AND dr.deleted_at IS NULL`

// ListActiveTenants implements Storage
func (s *pg) ListActiveTenants(ctx context.Context) ([]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM factories WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TrainingData implements Storage
func (s *pg) TrainingData(ctx context.Context, tenantID int64) ([]features.RawRecord, error) {
	rows, err := s.q.Query(ctx,
		recordsSelect+`
	ORDER BY dr.defect_date DESC
	LIMIT 10000`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// WindowData implements Storage
func (s *pg) WindowData(ctx context.Context, tenantID int64, days int) ([]features.RawRecord, error) {
	rows, err := s.q.Query(ctx,
		recordsSelect+`
	  AND dr.defect_date >= CURRENT_DATE - $2 * INTERVAL '1 day'
	ORDER BY dr.defect_date DESC`, tenantID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows repokit.Rows) ([]features.RawRecord, error) {
	var out []features.RawRecord
	for rows.Next() {
		var (
			r    features.RawRecord
			date *time.Time
		)
		if err := rows.Scan(
			&r.ID, &date,
			&r.QuantityDefective, &r.QuantityProduced,
			&r.Shift, &r.MachineCode, &r.OperatorName, &r.MaterialBatch,
			&r.Temperature, &r.Humidity, &r.DefectCode,
			&r.HasDefect, &r.DefectRate,
		); err != nil {
			return nil, err
		}
		if date != nil {
			r.Date = *date
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertModelStamp implements Storage
func (s *pg) InsertModelStamp(ctx context.Context, tenantID int64, modelPath string, accuracy float64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ai_models
			(factory_id, model_name, model_type, model_path, accuracy, trained_at, is_active)
		VALUES ($1, 'defect_predictor', 'random_forest', $2, $3, NOW(), TRUE)
		ON CONFLICT DO NOTHING`,
		tenantID, modelPath, accuracy)
	return err
}

// InsertPrediction implements Storage
func (s *pg) InsertPrediction(ctx context.Context, tenantID int64, input, result []byte, confidence float64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ai_predictions
			(factory_id, prediction_type, input_data, prediction_result, confidence)
		VALUES ($1, 'defect_probability', $2, $3, $4)`,
		tenantID, input, result, confidence)
	return err
}

// InsertAlert implements Storage. The machine is resolved by code within
// the tenant; alerts for unknown machines insert nothing
func (s *pg) InsertAlert(ctx context.Context, tenantID int64, a anomdom.Alert, payload []byte) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO anomaly_alerts
			(factory_id, machine_id, alert_type, severity, description, data_point, created_at)
		SELECT $1, m.id, 'production_anomaly', $2, $3, $4, NOW()
		FROM machines m
		WHERE m.code = $5 AND m.factory_id = $1
		LIMIT 1`,
		tenantID, a.Severity, a.Description, payload, a.Machine)
	return err
}
