// Package handler implements the HTTP endpoints of the vendor signal API.
// Handlers depend on narrow interfaces so tests can substitute fakes.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/syntheticfinds/vendor-software-integration/internal/api/middleware"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/internal/trajectory"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Insights is the read side of the engine.
type Insights interface {
	Metric(ctx context.Context, companyID, softwareID uuid.UUID, name string, windowDays int, stageTopic string) (*metrics.Result, error)
	Trajectory(ctx context.Context, companyID, softwareID uuid.UUID) (*trajectory.Trajectory, error)
	Benchmarks(ctx context.Context, companyID, softwareID uuid.UUID) (*service.Benchmarks, error)
	LatestHealth(ctx context.Context, companyID, softwareID uuid.UUID) (*models.HealthScore, error)
	HealthHistory(ctx context.Context, companyID, softwareID uuid.UUID, limit int) ([]*models.HealthScore, error)
}

// Analyzer starts background health analysis.
type Analyzer interface {
	TriggerAnalysis(ctx context.Context, companyID, softwareID uuid.UUID) (*models.Job, error)
}

// Ingester stores incoming signals.
type Ingester interface {
	Ingest(ctx context.Context, companyID, softwareID uuid.UUID, inputs []service.SignalInput) (*service.IngestResult, error)
}

var (
	_ Insights = (*service.InsightService)(nil)
	_ Analyzer = (*service.AnalysisService)(nil)
	_ Ingester = (*service.IngestService)(nil)
)

type notFound struct {
	code    string
	message string
}

var (
	softwareNotFound = notFound{"SOFTWARE_NOT_FOUND", "Software not found"}
	jobNotFound      = notFound{"JOB_NOT_FOUND", "Job not found"}
	keyNotFound      = notFound{"KEY_NOT_FOUND", "API key not found"}
)

func companyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := mw.GetCompanyID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
	}
	return id, ok
}

// pathID parses a UUID URL parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, code, "Invalid "+param+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// scoped resolves the company and software id every per-software route needs.
func scoped(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	cid, ok := companyID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	sid, ok := pathID(w, r, "softwareID", "INVALID_SOFTWARE_ID")
	return cid, sid, ok
}

// writeError maps engine and store errors onto the error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error, nf notFound) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, nf.code, nf.message, nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, "ALREADY_EXISTS", "Resource already exists", nil)
	case errors.Is(err, service.ErrNoScore):
		response.Error(w, http.StatusNotFound, "NO_HEALTH_SCORE",
			"No health score recorded yet; trigger an analysis first", nil)
	case errors.Is(err, metrics.ErrUnknownMetric):
		response.Error(w, http.StatusBadRequest, "UNKNOWN_METRIC", err.Error(),
			map[string]any{"supported": metrics.Names})
	case errors.Is(err, metrics.ErrInvalidWindow):
		response.Error(w, http.StatusBadRequest, "INVALID_WINDOW", err.Error(), nil)
	case errors.Is(err, metrics.ErrInvalidStage):
		response.Error(w, http.StatusBadRequest, "INVALID_STAGE_TOPIC", err.Error(),
			map[string]any{"supported": models.Stages})
	case errors.Is(err, service.ErrInvalidSignal):
		response.Error(w, http.StatusBadRequest, "INVALID_SIGNAL", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, "TIMEOUT", "The request took too long", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
