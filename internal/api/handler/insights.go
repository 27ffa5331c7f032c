package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

// NewMetricHandler returns an http.HandlerFunc for
// GET /api/v1/software/{softwareID}/metrics/{metric}.
//
// Query parameters:
//   - window_days: rolling window length (default depends on the metric)
//   - stage_topic: restrict to one lifecycle stage
func NewMetricHandler(svc Insights) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		windowDays := 0
		if raw := q.Get("window_days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_WINDOW", "window_days must be an integer", nil)
				return
			}
			windowDays = n
		}

		res, err := svc.Metric(r.Context(), cid, sid, chi.URLParam(r, "metric"), windowDays, q.Get("stage_topic"))
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.JSON(w, res)
	}
}

// NewTrajectoryHandler returns an http.HandlerFunc for
// GET /api/v1/software/{softwareID}/trajectory.
func NewTrajectoryHandler(svc Insights) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}
		tr, err := svc.Trajectory(r.Context(), cid, sid)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.JSON(w, tr)
	}
}

// NewBenchmarksHandler returns an http.HandlerFunc for
// GET /api/v1/software/{softwareID}/benchmarks. Comparisons with too few
// peers are omitted from the payload rather than reported as errors.
func NewBenchmarksHandler(svc Insights) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}
		b, err := svc.Benchmarks(r.Context(), cid, sid)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.JSON(w, b)
	}
}

// NewLatestHealthHandler returns an http.HandlerFunc for
// GET /api/v1/software/{softwareID}/health.
func NewLatestHealthHandler(svc Insights) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}
		h, err := svc.LatestHealth(r.Context(), cid, sid)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.JSON(w, h)
	}
}

// NewHealthHistoryHandler returns an http.HandlerFunc for
// GET /api/v1/software/{softwareID}/health/history?limit=N.
func NewHealthHistoryHandler(svc Insights) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		history, err := svc.HealthHistory(r.Context(), cid, sid, limit)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		if history == nil {
			history = []*models.HealthScore{}
		}
		response.Collection(w, history, response.ListMeta{Count: len(history), Limit: limit})
	}
}
