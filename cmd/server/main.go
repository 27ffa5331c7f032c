// Package main is the entrypoint for the vendor signal API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syntheticfinds/vendor-software-integration/internal/api"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "thresholds_file", cfg.Analysis.ThresholdsFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build services and router
	handler, analysis := newHandler(cfg, store.NewPostgresStore(pool), redisCache)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Analysis jobs run detached from requests; let them record their outcome.
	analysis.Wait()
	slog.Info("server stopped gracefully")
	return nil
}

// newHandler wires the services over st and c. The analysis service is
// returned so shutdown can wait for in-flight jobs.
func newHandler(cfg *config.Config, st store.Store, c cache.Cache) (http.Handler, *service.AnalysisService) {
	analysis := service.NewAnalysisService(st, c, cfg.Thresholds, cfg.Analysis.Timeout, service.SystemClock)
	svc := api.Services{
		Insights: service.NewInsightService(st, c, cfg.Thresholds, cfg.Redis.MetricTTL, service.SystemClock),
		Analyzer: analysis,
		Ingester: service.NewIngestService(st, service.SystemClock),
	}
	return api.NewRouter(api.NewDependencies(st, c, svc, cfg.Server.RateLimitPerMinute)), analysis
}
