package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

const healthScoreColumns = `id, company_id, software_id, score, category_breakdown, category_confidence,
	signal_summary, signal_count, confidence_tier, scoring_window_start, scoring_window_end, created_at`

func scanHealthScore(row rowScanner) (*models.HealthScore, error) {
	var h models.HealthScore
	err := row.Scan(&h.ID, &h.CompanyID, &h.SoftwareID, &h.Score, &h.CategoryBreakdown, &h.CategoryConfidence,
		&h.SignalSummary, &h.SignalCount, &h.ConfidenceTier, &h.ScoringWindowStart, &h.ScoringWindowEnd, &h.CreatedAt)
	return &h, err
}

func (s *PostgresStore) queryHealthScores(ctx context.Context, query string, args ...any) ([]*models.HealthScore, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.HealthScore
	for rows.Next() {
		h, err := scanHealthScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan health score: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateHealthScore appends a snapshot. Scores are never updated.
func (s *PostgresStore) CreateHealthScore(ctx context.Context, h *models.HealthScore) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO health_scores (`+healthScoreColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		h.ID, h.CompanyID, h.SoftwareID, h.Score, h.CategoryBreakdown, h.CategoryConfidence,
		h.SignalSummary, h.SignalCount, string(h.ConfidenceTier), h.ScoringWindowStart, h.ScoringWindowEnd, h.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create health score: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestHealthScore(ctx context.Context, companyID, softwareID uuid.UUID) (*models.HealthScore, error) {
	h, err := scanHealthScore(s.pool.QueryRow(ctx,
		`SELECT `+healthScoreColumns+` FROM health_scores
		 WHERE company_id = $1 AND software_id = $2 ORDER BY created_at DESC LIMIT 1`, companyID, softwareID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest health score: %w", err)
	}
	return h, nil
}

// ListHealthScores returns the newest limit snapshots, newest first.
func (s *PostgresStore) ListHealthScores(ctx context.Context, companyID, softwareID uuid.UUID, limit int) ([]*models.HealthScore, error) {
	out, err := s.queryHealthScores(ctx,
		`SELECT `+healthScoreColumns+` FROM health_scores
		 WHERE company_id = $1 AND software_id = $2 ORDER BY created_at DESC LIMIT $3`,
		companyID, softwareID, normalizeLimit(limit, 30, 365))
	if err != nil {
		return nil, fmt.Errorf("list health scores: %w", err)
	}
	return out, nil
}

// LatestHealthScores returns the newest snapshot of each listed software.
// Software that was never scored is absent from the result.
func (s *PostgresStore) LatestHealthScores(ctx context.Context, softwareIDs []uuid.UUID) ([]*models.HealthScore, error) {
	if len(softwareIDs) == 0 {
		return nil, nil
	}
	out, err := s.queryHealthScores(ctx,
		`SELECT DISTINCT ON (software_id) `+healthScoreColumns+` FROM health_scores
		 WHERE software_id = ANY($1) ORDER BY software_id, created_at DESC`, softwareIDs)
	if err != nil {
		return nil, fmt.Errorf("list peer health scores: %w", err)
	}
	return out, nil
}
