package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/benchmark"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/internal/trajectory"
	"github.com/syntheticfinds/vendor-software-integration/internal/window"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// InsightService answers read-side questions about one software: metric
// series, trajectory, peer benchmarks and stored health scores.
type InsightService struct {
	store store.Store
	cache cache.Cache
	th    config.Thresholds
	ttl   time.Duration
	clock Clock
}

// NewInsightService creates an InsightService. A nil clock uses SystemClock.
func NewInsightService(st store.Store, ca cache.Cache, th config.Thresholds, ttl time.Duration, clock Clock) *InsightService {
	return &InsightService{store: st, cache: ca, th: th, ttl: ttl, clock: orSystem(clock)}
}

// Metric computes one metric series with its peer comparison. Software with
// no signals at all returns an empty series without touching the cache.
func (s *InsightService) Metric(ctx context.Context, companyID, softwareID uuid.UUID, name string, windowDays int, stageTopic string) (*metrics.Result, error) {
	metric, err := metrics.ParseName(name)
	if err != nil {
		return nil, err
	}
	sw, err := s.store.GetSoftware(ctx, softwareID, companyID)
	if err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}
	count, err := s.store.CountSignals(ctx, companyID, softwareID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	params := MetricParams(s.th, now)
	params.WindowDays = windowDays
	params.StageTopic = stageTopic

	if count == 0 {
		res, err := metrics.Compute(metric, nil, params)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}

	key := cache.MetricKey(sw.ID, string(metric), windowDays, stageTopic, window.Day(now), count)
	var cached metrics.Result
	if found, err := cache.GetJSON(ctx, s.cache, key, &cached); err != nil {
		slog.Warn("metric cache read failed", "key", key, "error", err)
	} else if found {
		return &cached, nil
	}

	signals, err := s.store.ListSignals(ctx, store.SignalFilter{CompanyID: companyID, SoftwareID: softwareID})
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	res, err := metrics.Compute(metric, signals, params)
	if err != nil {
		return nil, err
	}
	if res.Excluded > 0 {
		slog.Info("signals excluded from windowing",
			"software_id", softwareID, "metric", metric, "excluded_events", res.Excluded)
	}

	group, err := findPeers(ctx, s.store, s.th, sw)
	if err != nil {
		slog.Warn("peer lookup failed", "software_id", softwareID, "error", err)
	} else if err := metrics.AttachPeers(&res, group.Label, group.Signals, params, s.th.MinPeers); err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, res, s.ttl); err != nil {
		slog.Warn("metric cache write failed", "key", key, "error", err)
	}
	return &res, nil
}

// Trajectory classifies the software's lifecycle position.
func (s *InsightService) Trajectory(ctx context.Context, companyID, softwareID uuid.UUID) (*trajectory.Trajectory, error) {
	if _, err := s.store.GetSoftware(ctx, softwareID, companyID); err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}
	count, err := s.store.CountSignals(ctx, companyID, softwareID)
	if err != nil {
		return nil, err
	}

	key := cache.TrajectoryKey(softwareID, window.Day(s.clock()), count)
	var cached trajectory.Trajectory
	if found, err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil && found {
		return &cached, nil
	}

	snap, err := LoadSnapshot(ctx, s.store, companyID, softwareID, s.clock())
	if err != nil {
		return nil, err
	}
	tr := trajectory.Classify(snap.Signals, TrajectoryOptions(s.th))
	if tr.Excluded > 0 {
		slog.Info("signals excluded from trajectory", "software_id", softwareID, "excluded_events", tr.Excluded)
	}
	if err := cache.SetJSON(ctx, s.cache, key, tr, s.ttl); err != nil {
		slog.Warn("trajectory cache write failed", "key", key, "error", err)
	}
	return &tr, nil
}

// Benchmarks is the full peer comparison of one software. Sections are nil
// when fewer than the minimum number of peers contribute.
type Benchmarks struct {
	PeerGroup  string                           `json:"peer_group"`
	PeerCount  int                              `json:"peer_count"`
	Trajectory *benchmark.TrajectoryBenchmark   `json:"trajectory"`
	Metrics    map[metrics.Name]*benchmark.Stat `json:"metrics"`
	Health     *benchmark.HealthBenchmark       `json:"health"`
}

// Benchmarks compares trajectory, latest metric values and health score
// against the software's peers.
func (s *InsightService) Benchmarks(ctx context.Context, companyID, softwareID uuid.UUID) (*Benchmarks, error) {
	snap, err := LoadSnapshot(ctx, s.store, companyID, softwareID, s.clock())
	if err != nil {
		return nil, err
	}
	group, err := findPeers(ctx, s.store, s.th, snap.Software)
	if err != nil {
		return nil, err
	}

	out := &Benchmarks{
		PeerGroup: group.Label,
		PeerCount: len(group.Software),
		Metrics:   map[metrics.Name]*benchmark.Stat{},
	}
	if len(group.Software) < s.th.MinPeers {
		return out, nil
	}

	opts := TrajectoryOptions(s.th)
	own := trajectory.Classify(snap.Signals, opts)
	peers := make([]trajectory.Trajectory, 0, len(group.Signals))
	for _, events := range group.Signals {
		if len(events) > 0 {
			peers = append(peers, trajectory.Classify(events, opts))
		}
	}
	out.Trajectory = benchmark.Trajectories(own, peers, s.th.MinPeers)

	params := MetricParams(s.th, snap.Today)
	for _, name := range metrics.Names {
		res, err := metrics.Compute(name, snap.Signals, params)
		if err != nil {
			return nil, err
		}
		value, ok := res.LatestValue()
		if !ok {
			continue
		}
		peerValues, err := metrics.LatestValues(name, group.Signals, params)
		if err != nil {
			return nil, err
		}
		if st := benchmark.Compare(value, peerValues, s.th.MinPeers); st != nil {
			out.Metrics[name] = st
		}
	}

	latest, err := s.store.LatestHealthScore(ctx, companyID, softwareID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get latest health score: %w", err)
	default:
		peerScores, err := s.store.LatestHealthScores(ctx, group.ids())
		if err != nil {
			return nil, fmt.Errorf("list peer health scores: %w", err)
		}
		values := make([]models.HealthScore, len(peerScores))
		for i, p := range peerScores {
			values[i] = *p
		}
		out.Health = benchmark.HealthScores(*latest, values, s.th.MinPeers)
	}
	return out, nil
}

// LatestHealth returns the newest stored health score.
func (s *InsightService) LatestHealth(ctx context.Context, companyID, softwareID uuid.UUID) (*models.HealthScore, error) {
	h, err := s.store.LatestHealthScore(ctx, companyID, softwareID)
	if errors.Is(err, store.ErrNotFound) {
		if _, swErr := s.store.GetSoftware(ctx, softwareID, companyID); swErr != nil {
			return nil, fmt.Errorf("get software: %w", swErr)
		}
		return nil, ErrNoScore
	}
	return h, err
}

// HealthHistory returns up to limit stored scores, newest first.
func (s *InsightService) HealthHistory(ctx context.Context, companyID, softwareID uuid.UUID, limit int) ([]*models.HealthScore, error) {
	if _, err := s.store.GetSoftware(ctx, softwareID, companyID); err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}
	return s.store.ListHealthScores(ctx, companyID, softwareID, limit)
}
