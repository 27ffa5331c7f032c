package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

const signalColumns = `id, company_id, software_id, source_type, source_id, event_type, severity, title, body, metadata, occurred_at, created_at`

func scanSignal(row rowScanner) (models.SignalEvent, error) {
	var (
		e          models.SignalEvent
		severity   *string
		occurredAt *time.Time
	)
	err := row.Scan(&e.ID, &e.CompanyID, &e.SoftwareID, &e.SourceType, &e.SourceID, &e.EventType,
		&severity, &e.Title, &e.Body, &e.Metadata, &occurredAt, &e.CreatedAt)
	if severity != nil {
		e.Severity = models.Severity(*severity)
	}
	if occurredAt != nil {
		e.OccurredAt = occurredAt.UTC()
	}
	if e.Metadata == nil {
		e.Metadata = models.Metadata{}
	}
	return e, err
}

// InsertSignals writes events in one batch. Events whose source id was
// already stored for the same software are skipped; the count of rows
// actually inserted is returned.
func (s *PostgresStore) InsertSignals(ctx context.Context, events []models.SignalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range events {
		e := &events[i]
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.Metadata == nil {
			e.Metadata = models.Metadata{}
		}
		batch.Queue(
			`INSERT INTO signal_events (`+signalColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT DO NOTHING`,
			e.ID, e.CompanyID, e.SoftwareID, e.SourceType, e.SourceID, e.EventType,
			nullableSeverity(e.Severity), e.Title, e.Body, e.Metadata, nullableTime(e.OccurredAt), e.CreatedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range events {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert signal: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListSignals returns signals matching filter ordered by occurred_at with
// untimed signals last.
func (s *PostgresStore) ListSignals(ctx context.Context, filter SignalFilter) ([]models.SignalEvent, error) {
	conditions := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	argIdx := 2

	if filter.SoftwareID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("software_id = $%d", argIdx))
		args = append(args, filter.SoftwareID)
		argIdx++
	}
	if filter.SourceType != "" {
		conditions = append(conditions, fmt.Sprintf("source_type = $%d", argIdx))
		args = append(args, filter.SourceType)
		argIdx++
	}
	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIdx))
		args = append(args, string(filter.Severity))
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, fmt.Sprintf("occurred_at < $%d", argIdx))
		args = append(args, filter.Until)
		argIdx++
	}

	query := `SELECT ` + signalColumns + ` FROM signal_events WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY occurred_at ASC NULLS LAST, created_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalEvent
	for rows.Next() {
		e, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountSignals(ctx context.Context, companyID, softwareID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signal_events WHERE company_id = $1 AND software_id = $2`,
		companyID, softwareID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return n, nil
}

// ListSignalsForSoftware loads every signal of the given software, grouped by
// software id. It crosses company boundaries and exists for peer comparisons.
func (s *PostgresStore) ListSignalsForSoftware(ctx context.Context, softwareIDs []uuid.UUID) (map[uuid.UUID][]models.SignalEvent, error) {
	out := make(map[uuid.UUID][]models.SignalEvent, len(softwareIDs))
	if len(softwareIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+signalColumns+` FROM signal_events
		 WHERE software_id = ANY($1) ORDER BY occurred_at ASC NULLS LAST`, softwareIDs)
	if err != nil {
		return nil, fmt.Errorf("list peer signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out[e.SoftwareID] = append(out[e.SoftwareID], e)
	}
	return out, rows.Err()
}

func nullableSeverity(s models.Severity) *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
