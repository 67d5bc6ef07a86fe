package service

import (
	"context"
	"os"
	"testing"

	"defectwatch/internal/core/features"
	"defectwatch/internal/core/ml"
	"defectwatch/internal/platform/testkit"
	dom "defectwatch/internal/services/predict/domain"
	regdom "defectwatch/internal/services/registry/domain"
	regsvc "defectwatch/internal/services/registry/service"
	trainsvc "defectwatch/internal/services/training/service"
)

func newStack(t *testing.T) (*Service, *trainsvc.Service, *regsvc.Service) {
	t.Helper()
	reg, err := regsvc.New(regsvc.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	backend := ml.NewReal()
	trainer := trainsvc.New(backend, reg, trainsvc.Config{
		Params: ml.Params{Trees: 20, MaxDepth: 6, MinLeaf: 3, Seed: 42, Folds: 3},
	})
	return New(backend, reg), trainer, reg
}

func defectRecords(n int) []features.RawRecord {
	recs := make([]features.RawRecord, n)
	for i := range recs {
		var defective float64
		temp := 40.0
		if i%3 == 0 {
			defective = 15
			temp = 75
		}
		recs[i] = features.RawRecord{
			ID:                int64(i + 1),
			QuantityProduced:  testkit.F64(100),
			QuantityDefective: testkit.F64(defective),
			Temperature:       testkit.F64(temp),
			Humidity:          testkit.F64(50),
			MachineCode:       testkit.Str("M1"),
		}
	}
	return recs
}

func TestPredictNoModel(t *testing.T) {
	svc, _, _ := newStack(t)
	p, err := svc.PredictDefect(context.Background(), 1, features.RawRecord{})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Status != dom.StatusNoModel {
		t.Fatalf("status = %q, want no_model", p.Status)
	}
	if p.Error == "" {
		t.Fatal("no_model result should carry a message")
	}
}

func TestPredictCorruptModelFallsBackToNoModel(t *testing.T) {
	ctx := context.Background()
	svc, trainer, reg := newStack(t)
	if _, err := trainer.Train(ctx, 9, defectRecords(120)); err != nil {
		t.Fatalf("train: %v", err)
	}

	art, ok, err := reg.Load(ctx, 9, regdom.KindDefect)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if err := os.WriteFile(art.Meta.ModelPath, []byte("not a gob"), 0o644); err != nil {
		t.Fatalf("corrupt model blob: %v", err)
	}

	p, err := svc.PredictDefect(ctx, 9, defectRecords(1)[0])
	if err != nil {
		t.Fatalf("corrupt blob should not surface an error, got %v", err)
	}
	if p.Status != dom.StatusNoModel {
		t.Fatalf("status = %q, want no_model", p.Status)
	}
}

func TestPredictWithModel(t *testing.T) {
	ctx := context.Background()
	svc, trainer, _ := newStack(t)
	if _, err := trainer.Train(ctx, 2, defectRecords(120)); err != nil {
		t.Fatalf("train: %v", err)
	}

	hot := features.RawRecord{
		QuantityProduced:  testkit.F64(100),
		QuantityDefective: testkit.F64(14),
		Temperature:       testkit.F64(76),
		Humidity:          testkit.F64(50),
		MachineCode:       testkit.Str("M1"),
	}
	p, err := svc.PredictDefect(ctx, 2, hot)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Status != "" {
		t.Fatalf("unexpected status %q: %s", p.Status, p.Error)
	}
	if p.Source != dom.SourceModel {
		t.Fatalf("source = %q, want model", p.Source)
	}
	if p.DefectProbability < 0 || p.DefectProbability > 1 {
		t.Fatalf("probability %f outside [0,1]", p.DefectProbability)
	}
	if p.ModelAccuracy == nil {
		t.Fatal("model accuracy missing")
	}
	if p.Recommendation == "" || p.RiskLevel == "" {
		t.Fatal("risk fields missing")
	}
	if got := RiskLevel(p.DefectProbability); got != p.RiskLevel {
		t.Fatalf("risk %q inconsistent with probability %f", p.RiskLevel, p.DefectProbability)
	}

	// unseen categorical values must not break scoring
	cold := features.RawRecord{
		QuantityProduced:  testkit.F64(100),
		QuantityDefective: testkit.F64(0),
		Temperature:       testkit.F64(40),
		Humidity:          testkit.F64(50),
		MachineCode:       testkit.Str("M-never-seen"),
	}
	pc, err := svc.PredictDefect(ctx, 2, cold)
	if err != nil {
		t.Fatalf("predict unseen: %v", err)
	}
	if pc.Status != "" {
		t.Fatalf("unexpected status %q", pc.Status)
	}
	if pc.DefectProbability >= p.DefectProbability {
		t.Fatalf("cold record %f not below hot record %f", pc.DefectProbability, p.DefectProbability)
	}
}

func TestRiskTiers(t *testing.T) {
	cases := []struct {
		prob float64
		want string
	}{
		{0.10, "low"},
		{0.30, "low"},
		{0.31, "medium"},
		{0.55, "medium"},
		{0.56, "high"},
		{0.75, "high"},
		{0.76, "critical"},
		{0.99, "critical"},
	}
	for _, tc := range cases {
		if got := RiskLevel(tc.prob); got != tc.want {
			t.Fatalf("RiskLevel(%f) = %q, want %q", tc.prob, got, tc.want)
		}
	}
}

func TestMockPredictionDeterministic(t *testing.T) {
	reg, err := regsvc.New(regsvc.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc := New(ml.NewDisabled(), reg)

	rec := features.RawRecord{ID: 42, Temperature: testkit.F64(50)}
	a, err := svc.PredictDefect(context.Background(), 1, rec)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	b, err := svc.PredictDefect(context.Background(), 1, rec)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if a.Source != dom.SourceMock {
		t.Fatalf("source = %q, want mock", a.Source)
	}
	if a.DefectProbability != b.DefectProbability {
		t.Fatalf("mock not deterministic: %f vs %f", a.DefectProbability, b.DefectProbability)
	}
	if a.DefectProbability < 0.05 || a.DefectProbability > 0.45 {
		t.Fatalf("mock probability %f outside [0.05, 0.45]", a.DefectProbability)
	}
}

func TestModelInfo(t *testing.T) {
	ctx := context.Background()
	svc, trainer, _ := newStack(t)

	info, err := svc.ModelInfo(ctx, 9)
	if err != nil {
		t.Fatalf("model info: %v", err)
	}
	if info.Trained {
		t.Fatal("untrained tenant reports trained")
	}

	if _, err := trainer.Train(ctx, 9, defectRecords(100)); err != nil {
		t.Fatalf("train: %v", err)
	}
	info, err = svc.ModelInfo(ctx, 9)
	if err != nil {
		t.Fatalf("model info: %v", err)
	}
	if !info.Trained || info.Metrics == nil || len(info.Versions) != 1 {
		t.Fatalf("unexpected info after training: %+v", info)
	}
}
