package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"defectwatch/internal/core/features"
	"defectwatch/internal/platform/store"
	"defectwatch/internal/platform/testkit"
	anomdom "defectwatch/internal/services/anomaly/domain"
	preddom "defectwatch/internal/services/predict/domain"
	dom "defectwatch/internal/services/records/domain"
	"defectwatch/internal/services/records/repo"
)

type fakeTag struct{}

func (fakeTag) String() string      { return "" }
func (fakeTag) RowsAffected() int64 { return 1 }

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Next() bool { r.pos++; return r.pos <= len(r.data) }
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		}
	}
	return nil
}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

type fakeDB struct {
	queryRows [][]any

	execSQL  []string
	execArgs [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return fakeTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) (store.Rows, error) {
	return &fakeRows{data: f.queryRows}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) store.Row { return nil }

func (f *fakeDB) Tx(_ context.Context, fn func(q store.RowQuerier) error) error { return fn(f) }

type fakeCH struct {
	table string
	cols  []string
	rows  [][]any
}

func (f *fakeCH) Insert(_ context.Context, table string, cols []string, rows [][]any) error {
	f.table, f.cols, f.rows = table, cols, rows
	return nil
}
func (f *fakeCH) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (f *fakeCH) Close() error                                              { return nil }

func TestListActiveTenants(t *testing.T) {
	db := &fakeDB{queryRows: [][]any{{int64(1)}, {int64(3)}}}
	svc := New(db, nil)

	ids, err := svc.ListActiveTenants(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("ids = %v, want [1 3]", ids)
	}
}

func TestRecordPredictionWritesAuditAndEvent(t *testing.T) {
	db := &fakeDB{}
	ch := &fakeCH{}
	svc := New(db, repo.NewCH(ch))
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }

	rec := features.RawRecord{ID: 4, MachineCode: testkit.Str("M2")}
	pred := &preddom.Prediction{
		DefectProbability: 0.61,
		DefectPredicted:   true,
		RiskLevel:         "high",
		Source:            preddom.SourceModel,
	}
	svc.RecordPrediction(context.Background(), 7, rec, pred)

	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "ai_predictions") {
		t.Fatalf("expected one ai_predictions insert, got %v", db.execSQL)
	}
	if got := db.execArgs[0][0]; got != int64(7) {
		t.Fatalf("tenant arg = %v, want 7", got)
	}

	if ch.table != "prediction_events" || len(ch.rows) != 1 {
		t.Fatalf("event append: table=%q rows=%d", ch.table, len(ch.rows))
	}
	row := ch.rows[0]
	if row[0] != int64(7) || row[3] != "high" || row[5] != "M2" {
		t.Fatalf("event row = %v", row)
	}
}

func TestRecordPredictionSkipsEventForNoModel(t *testing.T) {
	db := &fakeDB{}
	ch := &fakeCH{}
	svc := New(db, repo.NewCH(ch))

	svc.RecordPrediction(context.Background(), 1, features.RawRecord{},
		&preddom.Prediction{Status: preddom.StatusNoModel})

	if ch.table != "" {
		t.Fatal("no_model result should not append an event")
	}
}

func TestRecordAlerts(t *testing.T) {
	db := &fakeDB{}
	svc := New(db, nil)

	alerts := []anomdom.Alert{
		{Machine: "M1", Severity: "critical", Description: "anomalous production pattern on machine M1: defect rate 95.00%"},
		{Machine: "M2", Severity: "medium", Description: "anomalous production pattern on machine M2: defect rate 12.00%"},
	}
	svc.RecordAlerts(context.Background(), 9, alerts)

	if len(db.execSQL) != 2 {
		t.Fatalf("expected 2 alert inserts, got %d", len(db.execSQL))
	}
	for i, sql := range db.execSQL {
		if !strings.Contains(sql, "anomaly_alerts") {
			t.Fatalf("insert %d targets %q", i, sql)
		}
	}
	if db.execArgs[0][1] != "critical" || db.execArgs[0][4] != "M1" {
		t.Fatalf("alert args = %v", db.execArgs[0])
	}
}

func TestRecordTraining(t *testing.T) {
	db := &fakeDB{}
	svc := New(db, nil)
	svc.RecordTraining(context.Background(), 2, "/models/defect.gob", 0.91)

	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "ai_models") {
		t.Fatalf("expected ai_models insert, got %v", db.execSQL)
	}
	if db.execArgs[0][2] != 0.91 {
		t.Fatalf("accuracy arg = %v", db.execArgs[0][2])
	}
}

var _ dom.ReaderPort = (*Service)(nil)
var _ dom.AuditPort = (*Service)(nil)
