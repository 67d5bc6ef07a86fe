//go:build integration_pg
// +build integration_pg

package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"defectwatch/internal/platform/store"
	"defectwatch/internal/services/anomaly/domain"
	"defectwatch/internal/services/records/repo"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

const schema = `
	CREATE TABLE factories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE machines (
		id BIGSERIAL PRIMARY KEY,
		factory_id BIGINT NOT NULL REFERENCES factories(id),
		code TEXT NOT NULL
	);
	CREATE TABLE users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	);
	CREATE TABLE production_records (
		id BIGSERIAL PRIMARY KEY,
		material_batch TEXT,
		temperature NUMERIC,
		humidity NUMERIC,
		actual_quantity NUMERIC
	);
	CREATE TABLE defect_codes (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL
	);
	CREATE TABLE defect_records (
		id BIGSERIAL PRIMARY KEY,
		factory_id BIGINT NOT NULL REFERENCES factories(id),
		defect_date DATE NOT NULL,
		quantity_defective NUMERIC NOT NULL DEFAULT 0,
		quantity_produced NUMERIC,
		shift TEXT,
		machine_id BIGINT REFERENCES machines(id),
		operator_id BIGINT REFERENCES users(id),
		production_record_id BIGINT REFERENCES production_records(id),
		defect_code_id BIGINT REFERENCES defect_codes(id),
		deleted_at TIMESTAMPTZ
	);
	CREATE TABLE ai_models (
		id BIGSERIAL PRIMARY KEY,
		factory_id BIGINT NOT NULL,
		model_name TEXT,
		model_type TEXT,
		model_path TEXT,
		accuracy DOUBLE PRECISION,
		trained_at TIMESTAMPTZ,
		is_active BOOLEAN
	);
	CREATE TABLE ai_predictions (
		id BIGSERIAL PRIMARY KEY,
		factory_id BIGINT NOT NULL,
		prediction_type TEXT,
		input_data JSONB,
		prediction_result JSONB,
		confidence DOUBLE PRECISION
	);
	CREATE TABLE anomaly_alerts (
		id BIGSERIAL PRIMARY KEY,
		factory_id BIGINT NOT NULL,
		machine_id BIGINT,
		alert_type TEXT,
		severity TEXT,
		description TEXT,
		data_point JSONB,
		created_at TIMESTAMPTZ
	);
`

const seed = `
	INSERT INTO factories (name, is_active) VALUES ('plant-a', TRUE), ('plant-b', TRUE), ('closed', FALSE);
	INSERT INTO machines (factory_id, code) VALUES (1, 'M1'), (1, 'M2'), (2, 'M1');
	INSERT INTO users (name) VALUES ('ops one');
	INSERT INTO defect_codes (code) VALUES ('SCRATCH');
	INSERT INTO production_records (material_batch, temperature, humidity, actual_quantity)
		VALUES ('B-77', 61.5, 48.0, 200);

	INSERT INTO defect_records
		(factory_id, defect_date, quantity_defective, quantity_produced, shift,
		 machine_id, operator_id, production_record_id, defect_code_id)
	VALUES
		(1, CURRENT_DATE,                 12, 200, 'day',   1, 1, 1, 1),
		(1, CURRENT_DATE - 2,              0, 180, 'night', 2, 1, NULL, NULL),
		(1, CURRENT_DATE - 40,             5, 150, 'day',   1, NULL, NULL, NULL),
		(2, CURRENT_DATE,                  3, 100, 'day',   3, NULL, NULL, NULL);

	INSERT INTO defect_records
		(factory_id, defect_date, quantity_defective, shift, deleted_at)
	VALUES (1, CURRENT_DATE, 99, 'day', NOW());
`

func TestRecordsRepo_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	if _, err := st.PG.Exec(ctx, schema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := st.PG.Exec(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := repo.NewPG().Bind(st.PG)

	tenants, err := s.ListActiveTenants(ctx)
	if err != nil {
		t.Fatalf("ListActiveTenants: %v", err)
	}
	if len(tenants) != 2 || tenants[0] != 1 || tenants[1] != 2 {
		t.Fatalf("tenants = %v, want [1 2]", tenants)
	}

	// training data excludes soft-deleted rows and other tenants
	recs, err := s.TrainingData(ctx, 1)
	if err != nil {
		t.Fatalf("TrainingData: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("training rows = %d, want 3", len(recs))
	}
	first := recs[0]
	if first.MachineCode == nil || *first.MachineCode != "M1" {
		t.Fatalf("machine = %v", first.MachineCode)
	}
	if first.OperatorName == nil || *first.OperatorName != "ops one" {
		t.Fatalf("operator = %v", first.OperatorName)
	}
	if first.Temperature == nil || *first.Temperature != 61.5 {
		t.Fatalf("temperature = %v", first.Temperature)
	}
	if first.HasDefect == nil || !*first.HasDefect {
		t.Fatal("has_defect should be true for 12 defective")
	}
	if first.DefectRate == nil || *first.DefectRate != 0.06 {
		t.Fatalf("defect_rate = %v, want 0.06", first.DefectRate)
	}

	// rows without a joined production record come back with nil optionals
	for _, r := range recs {
		if r.Shift != nil && *r.Shift == "night" {
			if r.Temperature != nil || r.MaterialBatch != nil {
				t.Fatalf("night row should have nil production fields: %+v", r)
			}
		}
	}

	// the trailing window drops the 40 day old row
	window, err := s.WindowData(ctx, 1, 7)
	if err != nil {
		t.Fatalf("WindowData: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window rows = %d, want 2", len(window))
	}

	// audit writes
	if err := s.InsertModelStamp(ctx, 1, "/models/defect_tenant1.gob", 0.91); err != nil {
		t.Fatalf("InsertModelStamp: %v", err)
	}
	if err := s.InsertPrediction(ctx, 1, []byte(`{"machine_code":"M1"}`), []byte(`{"risk_level":"low"}`), 12.5); err != nil {
		t.Fatalf("InsertPrediction: %v", err)
	}
	if err := s.InsertAlert(ctx, 1, domain.Alert{
		Machine:     "M2",
		Severity:    "high",
		Description: "anomalous production pattern on machine M2: defect rate 6.00%",
	}, []byte(`{}`)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	var alerts int
	if err := st.PG.QueryRow(ctx, `SELECT count(*) FROM anomaly_alerts WHERE machine_id IS NOT NULL`).Scan(&alerts); err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if alerts != 1 {
		t.Fatalf("alerts = %d, want 1", alerts)
	}

	// unknown machine code inserts nothing
	if err := s.InsertAlert(ctx, 1, domain.Alert{Machine: "NOPE", Severity: "low"}, []byte(`{}`)); err != nil {
		t.Fatalf("InsertAlert unknown machine: %v", err)
	}
	if err := st.PG.QueryRow(ctx, `SELECT count(*) FROM anomaly_alerts`).Scan(&alerts); err != nil {
		t.Fatalf("recount alerts: %v", err)
	}
	if alerts != 1 {
		t.Fatalf("alerts after unknown machine = %d, want 1", alerts)
	}
}
