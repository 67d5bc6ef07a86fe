package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chicors "github.com/go-chi/cors"

	"defectwatch/internal/platform/web"
)

// RouterConfig controls the outer router behavior
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter mounts the lifecycle endpoints behind the standard middleware
// stack. Tenant-scoped routes require the X-Tenant-ID header
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(web.AssignRequestID)
	r.Use(web.Recover)
	r.Use(web.AccessLog)
	r.Use(chicors.Handler(chicors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", web.TenantHeader, web.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.healthz)

	r.Route("/ai", func(r chi.Router) {
		// admin sweep, not tenant scoped
		r.Post("/retrain-all", h.retrainAll)

		r.Group(func(r chi.Router) {
			r.Use(web.RequireTenant)
			r.Post("/train", h.train)
			r.Post("/predict", h.predict)
			r.Get("/anomalies", h.anomalies)
			r.Get("/model-info", h.modelInfo)
			r.Get("/versions", h.versions)
		})
	})

	return r
}
