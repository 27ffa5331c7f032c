// Package export writes metric series and health score history to Parquet
// files for offline analysis.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// MetricRow is one day of one metric series.
type MetricRow struct {
	SoftwareID string `parquet:"software_id,snappy,dict"`
	Metric     string `parquet:"metric,snappy,dict"`
	WindowDays int32  `parquet:"window_days,snappy"`
	StageTopic string `parquet:"stage_topic,snappy,dict"`

	// Date is the last day of the rolling window, YYYY-MM-DD.
	Date  string   `parquet:"date,snappy"`
	Count int32    `parquet:"count,snappy"`
	Total int32    `parquet:"total,snappy"`
	Rate  float64  `parquet:"rate,snappy"`
	Value *float64 `parquet:"value,optional,snappy"`

	// PeerValue is the peer average for the same day, when peers qualified.
	PeerValue *float64 `parquet:"peer_value,optional,snappy"`
	Trend     string   `parquet:"trend,snappy,dict"`
}

// HealthRow is one stored health score.
type HealthRow struct {
	ID                 string    `parquet:"id,snappy"`
	SoftwareID         string    `parquet:"software_id,snappy,dict"`
	Score              int32     `parquet:"score,snappy"`
	Reliability        int32     `parquet:"reliability,snappy"`
	Performance        int32     `parquet:"performance,snappy"`
	Fitness            int32     `parquet:"fitness,snappy"`
	SupportQuality     int32     `parquet:"support_quality,snappy"`
	SignalCount        int32     `parquet:"signal_count,snappy"`
	ConfidenceTier     string    `parquet:"confidence_tier,snappy,dict"`
	ScoringWindowStart time.Time `parquet:"scoring_window_start,snappy"`
	ScoringWindowEnd   time.Time `parquet:"scoring_window_end,snappy"`
	CreatedAt          time.Time `parquet:"created_at,snappy"`
}

// MetricRows flattens a computed series, one row per point.
func MetricRows(softwareID uuid.UUID, res *metrics.Result) []MetricRow {
	peer := map[string]float64{}
	if res.Peer != nil {
		for _, p := range res.Peer.Points {
			peer[p.Date] = p.Value
		}
	}

	rows := make([]MetricRow, 0, len(res.Points))
	for _, p := range res.Points {
		row := MetricRow{
			SoftwareID: softwareID.String(),
			Metric:     string(res.Metric),
			WindowDays: int32(res.WindowDays),
			StageTopic: res.StageTopic,
			Date:       p.Date,
			Count:      int32(p.Count),
			Total:      int32(p.Total),
			Rate:       p.Rate,
			Trend:      string(res.Commentary.Trend),
		}
		if v, ok := res.Value(p); ok {
			row.Value = &v
		}
		if v, ok := peer[p.Date]; ok {
			row.PeerValue = &v
		}
		rows = append(rows, row)
	}
	return rows
}

// HealthRows converts stored scores, keeping their order.
func HealthRows(scores []*models.HealthScore) []HealthRow {
	rows := make([]HealthRow, len(scores))
	for i, h := range scores {
		rows[i] = HealthRow{
			ID:                 h.ID.String(),
			SoftwareID:         h.SoftwareID.String(),
			Score:              int32(h.Score),
			Reliability:        int32(h.CategoryBreakdown[models.CategoryReliability]),
			Performance:        int32(h.CategoryBreakdown[models.CategoryPerformance]),
			Fitness:            int32(h.CategoryBreakdown[models.CategoryFitness]),
			SupportQuality:     int32(h.CategoryBreakdown[models.CategorySupportQuality]),
			SignalCount:        int32(h.SignalCount),
			ConfidenceTier:     string(h.ConfidenceTier),
			ScoringWindowStart: h.ScoringWindowStart,
			ScoringWindowEnd:   h.ScoringWindowEnd,
			CreatedAt:          h.CreatedAt,
		}
	}
	return rows
}

// Write encodes rows as a Parquet file with a schema inferred from T.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteFile creates path and writes rows to it.
func WriteFile[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Write(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Source supplies the data an export reads.
type Source interface {
	Metric(ctx context.Context, companyID, softwareID uuid.UUID, name string, windowDays int, stageTopic string) (*metrics.Result, error)
	HealthHistory(ctx context.Context, companyID, softwareID uuid.UUID, limit int) ([]*models.HealthScore, error)
}

// Summary reports what an export wrote.
type Summary struct {
	MetricsPath string
	HealthPath  string
	MetricRows  int
	HealthRows  int
}

const historyLimit = 365

// Software writes every metric at its default window plus the health score
// history of one software into dir as metrics.parquet and health_scores.parquet.
func Software(ctx context.Context, src Source, companyID, softwareID uuid.UUID, dir string) (*Summary, error) {
	var rows []MetricRow
	for _, name := range metrics.Names {
		res, err := src.Metric(ctx, companyID, softwareID, string(name), 0, "")
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", name, err)
		}
		rows = append(rows, MetricRows(softwareID, res)...)
	}

	history, err := src.HealthHistory(ctx, companyID, softwareID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load health history: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	out := &Summary{
		MetricsPath: filepath.Join(dir, "metrics.parquet"),
		HealthPath:  filepath.Join(dir, "health_scores.parquet"),
		MetricRows:  len(rows),
		HealthRows:  len(history),
	}
	if err := WriteFile(out.MetricsPath, rows); err != nil {
		return nil, err
	}
	if err := WriteFile(out.HealthPath, HealthRows(history)); err != nil {
		return nil, err
	}
	return out, nil
}
