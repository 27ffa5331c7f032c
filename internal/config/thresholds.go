package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Thresholds are the engine tunables: window sizes, trend dead zone, privacy
// and confidence cut-offs, incident splitting gaps and health weights.
type Thresholds struct {
	LookbackDays         int           `mapstructure:"lookback_days"`
	ScoringWindowDays    int           `mapstructure:"scoring_window_days"`
	TrendDeadZone        float64       `mapstructure:"trend_dead_zone"`
	MinPeers             int           `mapstructure:"min_peers"`
	PeerLimit            int           `mapstructure:"peer_limit"`
	PeerSimilarity       float64       `mapstructure:"peer_similarity"`
	DevelopingSignals    int           `mapstructure:"developing_signals"`
	SolidSignals         int           `mapstructure:"solid_signals"`
	CategoryMinSignals   int           `mapstructure:"category_min_signals"`
	ReopenGapDays        int           `mapstructure:"reopen_gap_days"`
	IncidentGapDays      int           `mapstructure:"incident_gap_days"`
	StageVoteSignals     int           `mapstructure:"stage_vote_signals"`
	RegressionMinSignals int           `mapstructure:"regression_min_signals"`
	HealthWeights        HealthWeights `mapstructure:"health_weights"`
}

// HealthWeights are the composite weights of the four health categories.
type HealthWeights struct {
	Reliability    float64 `mapstructure:"reliability"`
	Performance    float64 `mapstructure:"performance"`
	Fitness        float64 `mapstructure:"fitness_for_purpose"`
	SupportQuality float64 `mapstructure:"support_quality"`
}

// Sum returns the total of all weights.
func (w HealthWeights) Sum() float64 {
	return w.Reliability + w.Performance + w.Fitness + w.SupportQuality
}

// DefaultThresholds returns the built-in tunables.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LookbackDays:         30,
		ScoringWindowDays:    30,
		TrendDeadZone:        0.10,
		MinPeers:             3,
		PeerLimit:            20,
		PeerSimilarity:       0.4,
		DevelopingSignals:    5,
		SolidSignals:         15,
		CategoryMinSignals:   2,
		ReopenGapDays:        7,
		IncidentGapDays:      14,
		StageVoteSignals:     10,
		RegressionMinSignals: 2,
		HealthWeights: HealthWeights{
			Reliability:    0.30,
			Performance:    0.30,
			Fitness:        0.25,
			SupportQuality: 0.15,
		},
	}
}

// LoadThresholds merges defaults, the optional YAML file at path and VSI_*
// environment overrides (for example VSI_MIN_PEERS or
// VSI_HEALTH_WEIGHTS_RELIABILITY), then validates the result.
func LoadThresholds(path string) (*Thresholds, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("thresholds")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VSI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := DefaultThresholds()
	v.SetDefault("lookback_days", d.LookbackDays)
	v.SetDefault("scoring_window_days", d.ScoringWindowDays)
	v.SetDefault("trend_dead_zone", d.TrendDeadZone)
	v.SetDefault("min_peers", d.MinPeers)
	v.SetDefault("peer_limit", d.PeerLimit)
	v.SetDefault("peer_similarity", d.PeerSimilarity)
	v.SetDefault("developing_signals", d.DevelopingSignals)
	v.SetDefault("solid_signals", d.SolidSignals)
	v.SetDefault("category_min_signals", d.CategoryMinSignals)
	v.SetDefault("reopen_gap_days", d.ReopenGapDays)
	v.SetDefault("incident_gap_days", d.IncidentGapDays)
	v.SetDefault("stage_vote_signals", d.StageVoteSignals)
	v.SetDefault("regression_min_signals", d.RegressionMinSignals)
	v.SetDefault("health_weights.reliability", d.HealthWeights.Reliability)
	v.SetDefault("health_weights.performance", d.HealthWeights.Performance)
	v.SetDefault("health_weights.fitness_for_purpose", d.HealthWeights.Fitness)
	v.SetDefault("health_weights.support_quality", d.HealthWeights.SupportQuality)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read thresholds file: %w", err)
		}
	}

	var th Thresholds
	if err := v.Unmarshal(&th); err != nil {
		return nil, fmt.Errorf("unmarshal thresholds: %w", err)
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &th, nil
}

// Validate rejects tunables the engine cannot run with.
func (t Thresholds) Validate() error {
	if t.LookbackDays < 1 || t.LookbackDays > 365 {
		return fmt.Errorf("lookback_days must be between 1 and 365, got %d", t.LookbackDays)
	}
	if t.ScoringWindowDays < 1 || t.ScoringWindowDays > 365 {
		return fmt.Errorf("scoring_window_days must be between 1 and 365, got %d", t.ScoringWindowDays)
	}
	if t.TrendDeadZone <= 0 || t.TrendDeadZone >= 1 {
		return fmt.Errorf("trend_dead_zone must be in (0,1), got %g", t.TrendDeadZone)
	}
	if t.MinPeers < 1 {
		return fmt.Errorf("min_peers must be at least 1, got %d", t.MinPeers)
	}
	if t.PeerLimit < t.MinPeers {
		return fmt.Errorf("peer_limit (%d) must not be below min_peers (%d)", t.PeerLimit, t.MinPeers)
	}
	if t.PeerSimilarity <= 0 || t.PeerSimilarity > 1 {
		return fmt.Errorf("peer_similarity must be in (0,1], got %g", t.PeerSimilarity)
	}
	if t.DevelopingSignals < 1 || t.DevelopingSignals >= t.SolidSignals {
		return fmt.Errorf("developing_signals (%d) must be positive and below solid_signals (%d)",
			t.DevelopingSignals, t.SolidSignals)
	}
	if t.CategoryMinSignals < 1 {
		return fmt.Errorf("category_min_signals must be at least 1, got %d", t.CategoryMinSignals)
	}
	if t.ReopenGapDays < 1 || t.IncidentGapDays < t.ReopenGapDays {
		return fmt.Errorf("incident_gap_days (%d) must be >= reopen_gap_days (%d) >= 1",
			t.IncidentGapDays, t.ReopenGapDays)
	}
	if t.StageVoteSignals < 1 {
		return fmt.Errorf("stage_vote_signals must be at least 1, got %d", t.StageVoteSignals)
	}
	if t.RegressionMinSignals < 1 {
		return fmt.Errorf("regression_min_signals must be at least 1, got %d", t.RegressionMinSignals)
	}

	w := t.HealthWeights
	for name, val := range map[string]float64{
		"reliability":         w.Reliability,
		"performance":         w.Performance,
		"fitness_for_purpose": w.Fitness,
		"support_quality":     w.SupportQuality,
	} {
		if val < 0 {
			return fmt.Errorf("health_weights.%s must not be negative, got %g", name, val)
		}
	}
	if math.Abs(w.Sum()-1) > 1e-6 {
		return fmt.Errorf("health_weights must sum to 1, got %g", w.Sum())
	}
	return nil
}
