package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/syntheticfinds/vendor-software-integration/internal/api/middleware"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateSoftware http.HandlerFunc
	ListSoftware   http.HandlerFunc
	GetSoftware    http.HandlerFunc
	IngestSignals  http.HandlerFunc

	GetMetric     http.HandlerFunc
	GetTrajectory http.HandlerFunc
	GetBenchmarks http.HandlerFunc
	LatestHealth  http.HandlerFunc
	HealthHistory http.HandlerFunc

	AnalyzeHandler http.HandlerFunc
	GetJobHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/software", orNotImplemented(deps.ListSoftware))
		r.Get("/api/v1/software/{softwareID}", orNotImplemented(deps.GetSoftware))
		r.Get("/api/v1/software/{softwareID}/metrics/{metric}", orNotImplemented(deps.GetMetric))
		r.Get("/api/v1/software/{softwareID}/trajectory", orNotImplemented(deps.GetTrajectory))
		r.Get("/api/v1/software/{softwareID}/benchmarks", orNotImplemented(deps.GetBenchmarks))
		r.Get("/api/v1/software/{softwareID}/health", orNotImplemented(deps.LatestHealth))
		r.Get("/api/v1/software/{softwareID}/health/history", orNotImplemented(deps.HealthHistory))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))

		// Writes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeIngest, models.ScopeAdmin))

			r.Post("/api/v1/software", orNotImplemented(deps.CreateSoftware))
			r.Post("/api/v1/software/{softwareID}/signals", orNotImplemented(deps.IngestSignals))
			r.Post("/api/v1/software/{softwareID}/analyze", orNotImplemented(deps.AnalyzeHandler))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
