package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/logger"
)

// TenantHeader carries the calling tenant's id
const TenantHeader = "X-Tenant-ID"

// RequestIDHeader echoes the request id back to the caller
const RequestIDHeader = "X-Request-ID"

// AssignRequestID gives each request a uuid, honors one supplied by the
// caller, and stamps it on the response and the request-scoped logger
func AssignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)

		ctx := WithRequest(r.Context(), reqID, 0)
		ctx = logger.WithRequest(ctx, reqID, 0)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTenant parses the tenant header and rejects requests without a
// positive integer tenant id
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TenantHeader)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			RespondError(w, r, perr.InvalidArgf("missing or invalid %s header", TenantHeader))
			return
		}
		ctx := WithRequest(r.Context(), RequestID(r.Context()), id)
		ctx = logger.WithRequest(ctx, RequestID(r.Context()), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// AccessLog emits one structured line per request
func AccessLog(next http.Handler) http.Handler {
	log := logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		ev := log.Info()
		if sw.status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Str("request_id", RequestID(r.Context())).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Recover converts handler panics into 500 envelopes
func Recover(next http.Handler) http.Handler {
	log := logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				RespondError(w, r, perr.PanicErrf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
