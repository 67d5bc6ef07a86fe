package web

import (
	"encoding/json"
	"net/http"

	perr "defectwatch/internal/platform/errors"
)

// Envelope is the standard response body for all endpoints
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// JSON writes v as application/json with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondOK writes a 200 envelope with data
func RespondOK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Status:     http.StatusText(http.StatusOK),
		RequestID:  RequestID(r.Context()),
		Data:       data,
	})
}

// RespondAccepted writes a 202 envelope with data
func RespondAccepted(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusAccepted, Envelope{
		StatusCode: http.StatusAccepted,
		Status:     http.StatusText(http.StatusAccepted),
		RequestID:  RequestID(r.Context()),
		Data:       data,
	})
}

// RespondError maps a project error into an envelope and writes it
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status, wire := perr.HTTP(err)
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       wire.Code,
		Reason:     wire.Reason,
		Error:      wire.Message,
		RequestID:  RequestID(r.Context()),
	})
}
