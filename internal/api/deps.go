package api

import (
	"github.com/syntheticfinds/vendor-software-integration/internal/api/handler"
	mw "github.com/syntheticfinds/vendor-software-integration/internal/api/middleware"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
)

// Services bundles what the handlers need beyond the store and cache.
type Services struct {
	Insights handler.Insights
	Analyzer handler.Analyzer
	Ingester handler.Ingester
}

// NewDependencies wires every route to its handler.
func NewDependencies(st store.Store, c cache.Cache, svc Services, requestsPerMin int) Dependencies {
	return Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(c, requestsPerMin),

		HealthHandler: handler.NewHealthHandler(st, c),

		CreateSoftware: handler.NewCreateSoftwareHandler(st),
		ListSoftware:   handler.NewListSoftwareHandler(st),
		GetSoftware:    handler.NewGetSoftwareHandler(st),
		IngestSignals:  handler.NewIngestHandler(svc.Ingester),

		GetMetric:     handler.NewMetricHandler(svc.Insights),
		GetTrajectory: handler.NewTrajectoryHandler(svc.Insights),
		GetBenchmarks: handler.NewBenchmarksHandler(svc.Insights),
		LatestHealth:  handler.NewLatestHealthHandler(svc.Insights),
		HealthHistory: handler.NewHealthHistoryHandler(svc.Insights),

		AnalyzeHandler: handler.NewAnalyzeHandler(svc.Analyzer),
		GetJobHandler:  handler.NewGetJobHandler(st),

		CreateKeyHandler: handler.NewCreateKeyHandler(st),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st),
	}
}
