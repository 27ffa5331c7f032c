package models

import (
	"time"

	"github.com/google/uuid"
)

// ConfidenceTier describes how much data backs a score.
type ConfidenceTier string

const (
	TierPreliminary ConfidenceTier = "preliminary"
	TierDeveloping  ConfidenceTier = "developing"
	TierSolid       ConfidenceTier = "solid"
)

// TierFor maps a signal count to a tier given the developing and solid
// thresholds.
func TierFor(signals, developing, solid int) ConfidenceTier {
	switch {
	case signals >= solid:
		return TierSolid
	case signals >= developing:
		return TierDeveloping
	default:
		return TierPreliminary
	}
}

// Confidence flags a single category or dimension.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// HealthScore is an immutable snapshot produced by one analysis run.
// History is the sequence of snapshots ordered by CreatedAt.
type HealthScore struct {
	ID                 uuid.UUID             `db:"id"                   json:"id"`
	CompanyID          uuid.UUID             `db:"company_id"           json:"company_id"`
	SoftwareID         uuid.UUID             `db:"software_id"          json:"software_id"`
	Score              int                   `db:"score"                json:"score"`
	CategoryBreakdown  map[string]int        `db:"category_breakdown"   json:"category_breakdown"`
	CategoryConfidence map[string]Confidence `db:"category_confidence"  json:"category_confidence"`
	SignalSummary      string                `db:"signal_summary"       json:"signal_summary"`
	SignalCount        int                   `db:"signal_count"         json:"signal_count"`
	ConfidenceTier     ConfidenceTier        `db:"confidence_tier"      json:"confidence_tier"`
	ScoringWindowStart time.Time             `db:"scoring_window_start" json:"scoring_window_start"`
	ScoringWindowEnd   time.Time             `db:"scoring_window_end"   json:"scoring_window_end"`
	CreatedAt          time.Time             `db:"created_at"           json:"created_at"`
}
