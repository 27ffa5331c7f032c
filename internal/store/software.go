package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

const softwareColumns = `id, company_id, vendor_name, software_name, intended_use, auto_category, status, created_at, updated_at`

func scanSoftware(row rowScanner) (*models.Software, error) {
	var sw models.Software
	err := row.Scan(&sw.ID, &sw.CompanyID, &sw.VendorName, &sw.SoftwareName, &sw.IntendedUse,
		&sw.AutoCategory, &sw.Status, &sw.CreatedAt, &sw.UpdatedAt)
	return &sw, err
}

func (s *PostgresStore) querySoftware(ctx context.Context, query string, args ...any) ([]*models.Software, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Software
	for rows.Next() {
		sw, err := scanSoftware(rows)
		if err != nil {
			return nil, fmt.Errorf("scan software: %w", err)
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateSoftware(ctx context.Context, sw *models.Software) error {
	if sw.Status == "" {
		sw.Status = models.SoftwareStatusActive
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO software (`+softwareColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sw.ID, sw.CompanyID, sw.VendorName, sw.SoftwareName, sw.IntendedUse,
		sw.AutoCategory, sw.Status, sw.CreatedAt, sw.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create software: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSoftware(ctx context.Context, id uuid.UUID, companyID uuid.UUID) (*models.Software, error) {
	sw, err := scanSoftware(s.pool.QueryRow(ctx,
		`SELECT `+softwareColumns+` FROM software WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}
	return sw, nil
}

func (s *PostgresStore) ListSoftware(ctx context.Context, companyID uuid.UUID) ([]*models.Software, error) {
	out, err := s.querySoftware(ctx,
		`SELECT `+softwareColumns+` FROM software WHERE company_id = $1 ORDER BY vendor_name, software_name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list software: %w", err)
	}
	return out, nil
}

// ListPeerSoftware returns active software in category across every company,
// excluding excludeID.
func (s *PostgresStore) ListPeerSoftware(ctx context.Context, category string, excludeID uuid.UUID, limit int) ([]*models.Software, error) {
	if category == "" {
		return nil, nil
	}
	out, err := s.querySoftware(ctx,
		`SELECT `+softwareColumns+` FROM software
		 WHERE auto_category = $1 AND id <> $2 AND status = 'active'
		 ORDER BY created_at LIMIT $3`, category, excludeID, normalizeLimit(limit, 20, 500))
	if err != nil {
		return nil, fmt.Errorf("list peer software: %w", err)
	}
	return out, nil
}

// ListActiveSoftware returns active software with a non-empty intended use,
// the candidate set for intended-use peer matching.
func (s *PostgresStore) ListActiveSoftware(ctx context.Context, excludeID uuid.UUID, limit int) ([]*models.Software, error) {
	out, err := s.querySoftware(ctx,
		`SELECT `+softwareColumns+` FROM software
		 WHERE id <> $1 AND status = 'active' AND intended_use <> ''
		 ORDER BY created_at LIMIT $2`, excludeID, normalizeLimit(limit, 100, 1000))
	if err != nil {
		return nil, fmt.Errorf("list active software: %w", err)
	}
	return out, nil
}

func normalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
