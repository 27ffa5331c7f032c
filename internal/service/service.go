// Package service wires the signal store and result cache to the metric,
// health, trajectory and benchmark engines.
package service

import (
	"errors"
	"time"

	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/health"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/internal/trajectory"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var (
	// ErrNoSignals means the scoring window held no usable signals.
	ErrNoSignals = health.ErrNoSignals
	// ErrNoScore means the software was never scored.
	ErrNoScore = errors.New("no health score recorded")
	// ErrInvalidSignal wraps ingest validation failures.
	ErrInvalidSignal = errors.New("invalid signal")
)

// Clock supplies the reference time used as "today".
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

func orSystem(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

func incidentOptions(th config.Thresholds) analysis.Options {
	return analysis.Options{
		ReopenGap:   time.Duration(th.ReopenGapDays) * 24 * time.Hour,
		IncidentGap: time.Duration(th.IncidentGapDays) * 24 * time.Hour,
	}
}

// MetricParams maps the tunables onto metric computation parameters.
func MetricParams(th config.Thresholds, today time.Time) metrics.Params {
	return metrics.Params{
		Today:        today,
		LookbackDays: th.LookbackDays,
		DeadZone:     th.TrendDeadZone,
		Incidents:    incidentOptions(th),
	}
}

// HealthOptions maps the tunables onto scorer options.
func HealthOptions(th config.Thresholds) health.Options {
	return health.Options{
		Weights: map[string]float64{
			models.CategoryReliability:    th.HealthWeights.Reliability,
			models.CategoryPerformance:    th.HealthWeights.Performance,
			models.CategoryFitness:        th.HealthWeights.Fitness,
			models.CategorySupportQuality: th.HealthWeights.SupportQuality,
		},
		DevelopingSignals:  th.DevelopingSignals,
		SolidSignals:       th.SolidSignals,
		CategoryMinSignals: th.CategoryMinSignals,
		Incidents:          incidentOptions(th),
	}
}

// TrajectoryOptions maps the tunables onto stage inference options.
func TrajectoryOptions(th config.Thresholds) trajectory.Options {
	return trajectory.Options{
		VoteSignals:          th.StageVoteSignals,
		RegressionMinSignals: th.RegressionMinSignals,
		DevelopingSignals:    th.DevelopingSignals,
		SolidSignals:         th.SolidSignals,
		Incidents:            incidentOptions(th),
	}
}
