package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultCompany(ctx context.Context) (*models.Company, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, companyID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, companyID uuid.UUID) error

	CreateSoftware(ctx context.Context, sw *models.Software) error
	GetSoftware(ctx context.Context, id uuid.UUID, companyID uuid.UUID) (*models.Software, error)
	ListSoftware(ctx context.Context, companyID uuid.UUID) ([]*models.Software, error)
	ListPeerSoftware(ctx context.Context, category string, excludeID uuid.UUID, limit int) ([]*models.Software, error)
	ListActiveSoftware(ctx context.Context, excludeID uuid.UUID, limit int) ([]*models.Software, error)

	InsertSignals(ctx context.Context, events []models.SignalEvent) (int, error)
	ListSignals(ctx context.Context, filter SignalFilter) ([]models.SignalEvent, error)
	CountSignals(ctx context.Context, companyID, softwareID uuid.UUID) (int, error)
	ListSignalsForSoftware(ctx context.Context, softwareIDs []uuid.UUID) (map[uuid.UUID][]models.SignalEvent, error)

	CreateHealthScore(ctx context.Context, score *models.HealthScore) error
	LatestHealthScore(ctx context.Context, companyID, softwareID uuid.UUID) (*models.HealthScore, error)
	ListHealthScores(ctx context.Context, companyID, softwareID uuid.UUID, limit int) ([]*models.HealthScore, error)
	LatestHealthScores(ctx context.Context, softwareIDs []uuid.UUID) ([]*models.HealthScore, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, companyID uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
}

// SignalFilter narrows ListSignals. Zero fields are ignored. Since and Until
// bound occurred_at, so untimed signals only appear when both are zero.
type SignalFilter struct {
	CompanyID  uuid.UUID
	SoftwareID uuid.UUID
	SourceType string
	Severity   models.Severity
	Since      time.Time
	Until      time.Time
	Limit      int
}

// JobUpdate carries the optional columns written alongside a status change.
type JobUpdate struct {
	ErrorMessage  *string
	HealthScoreID *uuid.UUID
}

type JobUpdateOption func(*JobUpdate)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}

func WithHealthScoreID(id uuid.UUID) JobUpdateOption {
	return func(p *JobUpdate) {
		p.HealthScoreID = &id
	}
}

// ApplyJobUpdates folds opts into a JobUpdate.
func ApplyJobUpdates(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}
