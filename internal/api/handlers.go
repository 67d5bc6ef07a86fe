// Package api exposes the ML lifecycle over HTTP: training, prediction,
// anomaly scans, model metadata and the admin retrain sweep
package api

import (
	"net/http"
	"strconv"

	"defectwatch/internal/core/features"
	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/store"
	"defectwatch/internal/platform/web"
	anomdom "defectwatch/internal/services/anomaly/domain"
	nwdom "defectwatch/internal/services/nightwatch/domain"
	preddom "defectwatch/internal/services/predict/domain"
	recdom "defectwatch/internal/services/records/domain"
	traindom "defectwatch/internal/services/training/domain"
)

// Handlers bundles the service ports the API fronts
type Handlers struct {
	Reader    recdom.ReaderPort
	Audit     recdom.AuditPort
	Trainer   traindom.TrainerPort
	Predictor preddom.PredictorPort
	Detector  anomdom.DetectorPort
	Sweeper   nwdom.SweeperPort

	// Store is pinged by the health endpoint, may be nil in tests
	Store *store.Store
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Guard(r.Context()); err != nil {
			web.RespondError(w, r, perr.Wrap(err, perr.ErrorCodeUnavailable, "storage not ready"))
			return
		}
	}
	web.RespondOK(w, r, map[string]string{"status": "ok"})
}

func (h *Handlers) train(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := web.TenantID(ctx)

	records, err := h.Reader.TrainingData(ctx, tenantID)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	result, err := h.Trainer.Train(ctx, tenantID, records)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	h.Audit.RecordTraining(ctx, tenantID, result.ModelPath, result.Metrics.Accuracy)
	web.RespondOK(w, r, result)
}

// predictRequest is the scoring input for one production record
type predictRequest struct {
	MachineCode   *string `json:"machine_code"`
	Shift         *string `json:"shift"`
	OperatorName  *string `json:"operator_name"`
	MaterialBatch *string `json:"material_batch"`
	DefectCode    *string `json:"defect_code"`

	QuantityProduced  *float64 `json:"quantity_produced" validate:"omitempty,gte=0"`
	QuantityDefective *float64 `json:"quantity_defective" validate:"omitempty,gte=0"`
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	Vibration         *float64 `json:"vibration" validate:"omitempty,gte=0"`
	Pressure          *float64 `json:"pressure" validate:"omitempty,gte=0"`
	DefectRate        *float64 `json:"defect_rate" validate:"omitempty,gte=0,lte=1"`
}

func (p *predictRequest) record() features.RawRecord {
	return features.RawRecord{
		MachineCode:       p.MachineCode,
		Shift:             p.Shift,
		OperatorName:      p.OperatorName,
		MaterialBatch:     p.MaterialBatch,
		DefectCode:        p.DefectCode,
		QuantityProduced:  p.QuantityProduced,
		QuantityDefective: p.QuantityDefective,
		Temperature:       p.Temperature,
		Humidity:          p.Humidity,
		Vibration:         p.Vibration,
		Pressure:          p.Pressure,
		DefectRate:        p.DefectRate,
	}
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := web.TenantID(ctx)

	var req predictRequest
	if err := web.BindJSON(r, &req); err != nil {
		web.RespondError(w, r, err)
		return
	}
	rec := req.record()

	pred, err := h.Predictor.PredictDefect(ctx, tenantID, rec)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	h.Audit.RecordPrediction(ctx, tenantID, rec, pred)
	web.RespondOK(w, r, pred)
}

func (h *Handlers) anomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := web.TenantID(ctx)

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 365 {
			web.RespondError(w, r, perr.InvalidArgf("days must be an integer between 1 and 365"))
			return
		}
		days = v
	}

	records, err := h.Reader.WindowData(ctx, tenantID, days)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	if len(records) < 10 {
		web.RespondOK(w, r, []anomdom.Alert{})
		return
	}

	scored, err := h.Detector.Detect(ctx, records, 0)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	alerts := h.Detector.FormatAlerts(scored)
	if alerts == nil {
		alerts = []anomdom.Alert{}
	}
	if len(alerts) > 0 {
		h.Audit.RecordAlerts(ctx, tenantID, alerts)
	}
	web.RespondOK(w, r, alerts)
}

func (h *Handlers) modelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Predictor.ModelInfo(r.Context(), web.TenantID(r.Context()))
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	web.RespondOK(w, r, info)
}

func (h *Handlers) versions(w http.ResponseWriter, r *http.Request) {
	info, err := h.Predictor.ModelInfo(r.Context(), web.TenantID(r.Context()))
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	web.RespondOK(w, r, info.Versions)
}

func (h *Handlers) retrainAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sweeper.RetrainAll(r.Context())
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	web.RespondAccepted(w, r, res)
}
