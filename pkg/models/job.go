package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const JobTypeHealthAnalysis = "health_analysis"

// Job tracks one asynchronous analysis run. POST .../analyze returns the job;
// clients poll GET /api/v1/jobs/{job_id} until it is completed or failed.
// A completed job without HealthScoreID means the window held no signals.
type Job struct {
	ID            uuid.UUID  `db:"id"              json:"id"`
	CompanyID     uuid.UUID  `db:"company_id"      json:"company_id"`
	SoftwareID    uuid.UUID  `db:"software_id"     json:"software_id"`
	Type          string     `db:"type"            json:"type"`
	Status        string     `db:"status"          json:"status"`
	HealthScoreID *uuid.UUID `db:"health_score_id" json:"health_score_id,omitempty"`
	ErrorMessage  *string    `db:"error_message"   json:"error_message,omitempty"`
	StartedAt     *time.Time `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}
