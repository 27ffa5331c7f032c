package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/health"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/internal/window"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// AnalysisService runs health scoring as background jobs.
type AnalysisService struct {
	store   store.Store
	cache   cache.Cache
	th      config.Thresholds
	timeout time.Duration
	clock   Clock
	wg      sync.WaitGroup
}

// NewAnalysisService creates an AnalysisService. A nil clock uses SystemClock.
func NewAnalysisService(st store.Store, ca cache.Cache, th config.Thresholds, timeout time.Duration, clock Clock) *AnalysisService {
	return &AnalysisService{store: st, cache: ca, th: th, timeout: timeout, clock: orSystem(clock)}
}

// Score computes a health report for sw over the trailing scoring window
// ending today. It does not persist anything.
func (s *AnalysisService) Score(sw *models.Software, signals []models.SignalEvent) (health.Report, error) {
	w := window.Trailing(window.Day(s.clock()), s.th.ScoringWindowDays)
	report, err := health.Score(signals, w, sw.DisplayName(), HealthOptions(s.th))
	if err != nil {
		return report, err
	}
	report.Score.CompanyID = sw.CompanyID
	report.Score.SoftwareID = sw.ID
	return report, nil
}

// TriggerAnalysis creates a pending job and scores the software in a
// background goroutine. The job is returned immediately.
func (s *AnalysisService) TriggerAnalysis(ctx context.Context, companyID, softwareID uuid.UUID) (*models.Job, error) {
	sw, err := s.store.GetSoftware(ctx, softwareID, companyID)
	if err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.New(),
		CompanyID:  companyID,
		SoftwareID: softwareID,
		Type:       models.JobTypeHealthAnalysis,
		Status:     models.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	s.mirror(ctx, job.ID, models.JobStatusPending)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(sw, job.ID)
	}()
	return job, nil
}

// Wait blocks until every dispatched job has finished.
func (s *AnalysisService) Wait() {
	s.wg.Wait()
}

// run always leaves the job completed or failed, including after a panic.
func (s *AnalysisService) run(sw *models.Software, jobID uuid.UUID) {
	ctx := context.Background()
	log := slog.With("job_id", jobID, "software_id", sw.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in analysis job", "error", r)
			s.finish(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(fmt.Sprintf("panic: %v", r)))
		}
	}()

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning); err != nil {
		log.Error("mark job running", "error", err)
		return
	}
	s.mirror(ctx, jobID, models.JobStatusRunning)

	workCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	signals, err := s.store.ListSignals(workCtx, store.SignalFilter{CompanyID: sw.CompanyID, SoftwareID: sw.ID})
	if err != nil {
		s.finish(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(fmt.Sprintf("loading signals: %v", err)))
		return
	}

	report, err := s.Score(sw, signals)
	if errors.Is(err, health.ErrNoSignals) {
		log.Info("no signals in scoring window", "window_days", s.th.ScoringWindowDays)
		s.finish(ctx, jobID, models.JobStatusCompleted)
		return
	}
	if err != nil {
		s.finish(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(err.Error()))
		return
	}

	score := report.Score
	score.ID = uuid.New()
	score.CreatedAt = time.Now().UTC()
	if err := s.store.CreateHealthScore(workCtx, &score); err != nil {
		s.finish(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(fmt.Sprintf("storing score: %v", err)))
		return
	}

	log.Info("health score recorded", "score", score.Score, "signal_count", score.SignalCount,
		"confidence_tier", score.ConfidenceTier)
	s.finish(ctx, jobID, models.JobStatusCompleted, store.WithHealthScoreID(score.ID))
}

func (s *AnalysisService) finish(ctx context.Context, jobID uuid.UUID, status string, opts ...store.JobUpdateOption) {
	if err := s.store.UpdateJobStatus(ctx, jobID, status, opts...); err != nil {
		slog.Error("update job status", "job_id", jobID, "status", status, "error", err)
	}
	s.mirror(ctx, jobID, status)
}

func (s *AnalysisService) mirror(ctx context.Context, jobID uuid.UUID, status string) {
	if err := s.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL); err != nil {
		slog.Warn("mirror job status", "job_id", jobID, "error", err)
	}
}
