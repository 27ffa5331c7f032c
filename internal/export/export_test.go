package export_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache/cachetest"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/export"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/internal/store/storetest"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var now = time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)

func readAll[T any](t *testing.T, r io.ReaderAt) []T {
	t.Helper()
	reader := parquet.NewGenericReader[T](r)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	return rows[:n]
}

func TestSchemas(t *testing.T) {
	for _, col := range []string{"software_id", "metric", "window_days", "date", "count", "rate", "value", "peer_value", "trend"} {
		_, ok := parquet.SchemaOf(new(export.MetricRow)).Lookup(col)
		assert.True(t, ok, "metric column %s", col)
	}
	for _, col := range []string{"score", "reliability", "support_quality", "confidence_tier", "scoring_window_end"} {
		_, ok := parquet.SchemaOf(new(export.HealthRow)).Lookup(col)
		assert.True(t, ok, "health column %s", col)
	}
}

func TestMetricRows(t *testing.T) {
	id := uuid.New()
	res := &metrics.Result{
		Metric:     metrics.IssueRate,
		WindowDays: 7,
		Points: []metrics.Point{
			{Date: "2026-04-19", Count: 2, Total: 4, Rate: 0.5, Values: map[string]float64{"negative_count": 2}},
			{Date: "2026-04-20", Count: 3, Total: 5, Rate: 0.6, Values: map[string]float64{"negative_count": 3}},
		},
		Commentary: metrics.Commentary{Trend: metrics.TrendIncreasing},
		Peer: &metrics.PeerSeries{PeerCount: 3, Points: []metrics.PeerPoint{
			{Date: "2026-04-20", Value: 1.5},
		}},
	}

	rows := export.MetricRows(id, res)
	require.Len(t, rows, 2)
	assert.Equal(t, id.String(), rows[0].SoftwareID)
	assert.Equal(t, "issue_rate", rows[0].Metric)
	assert.Equal(t, "increasing", rows[1].Trend)
	assert.Nil(t, rows[0].PeerValue)
	require.NotNil(t, rows[1].PeerValue)
	assert.InDelta(t, 1.5, *rows[1].PeerValue, 1e-9)
	require.NotNil(t, rows[1].Value)

	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, rows))
	back := readAll[export.MetricRow](t, bytes.NewReader(buf.Bytes()))
	require.Len(t, back, 2)
	assert.Equal(t, rows[1].Date, back[1].Date)
	assert.Equal(t, int32(3), back[1].Count)
	assert.Nil(t, back[0].PeerValue)
	require.NotNil(t, back[1].PeerValue)
	assert.InDelta(t, 1.5, *back[1].PeerValue, 1e-9)
}

func TestHealthRows(t *testing.T) {
	h := &models.HealthScore{
		ID:         uuid.New(),
		SoftwareID: uuid.New(),
		Score:      66,
		CategoryBreakdown: map[string]int{
			models.CategoryReliability: 45, models.CategoryPerformance: 75,
			models.CategoryFitness: 75, models.CategorySupportQuality: 75,
		},
		SignalCount:    2,
		ConfidenceTier: models.TierPreliminary,
		CreatedAt:      now,
	}
	rows := export.HealthRows([]*models.HealthScore{h})
	require.Len(t, rows, 1)
	assert.Equal(t, int32(66), rows[0].Score)
	assert.Equal(t, int32(45), rows[0].Reliability)
	assert.Equal(t, "preliminary", rows[0].ConfidenceTier)
}

func TestSoftware_WritesBothFiles(t *testing.T) {
	ctx := context.Background()
	m := storetest.NewMemory()
	sw := m.AddSoftware(models.Software{SoftwareName: "Desk", CreatedAt: now.AddDate(0, -2, 0)})
	_, err := m.InsertSignals(ctx, []models.SignalEvent{{
		CompanyID: m.Company.ID, SoftwareID: sw.ID, SourceType: models.SourceJira,
		EventType: models.EventTicketCreated, Severity: models.SeverityHigh, Title: "Sync broken",
		Metadata:   models.Metadata{models.MetaValence: models.ValenceNegative},
		OccurredAt: now.AddDate(0, 0, -2),
	}})
	require.NoError(t, err)
	require.NoError(t, m.CreateHealthScore(ctx, &models.HealthScore{
		ID: uuid.New(), CompanyID: m.Company.ID, SoftwareID: sw.ID, Score: 70, CreatedAt: now,
	}))

	src := service.NewInsightService(m, cachetest.NewMemory(), config.DefaultThresholds(), time.Hour,
		func() time.Time { return now })
	dir := t.TempDir()

	sum, err := export.Software(ctx, src, m.Company.ID, sw.ID, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.HealthRows)
	assert.Greater(t, sum.MetricRows, len(metrics.Names))

	f, err := os.Open(sum.MetricsPath)
	require.NoError(t, err)
	defer f.Close()
	rows := readAll[export.MetricRow](t, f)
	assert.Len(t, rows, sum.MetricRows)

	seen := map[string]bool{}
	for _, r := range rows {
		seen[r.Metric] = true
	}
	assert.Len(t, seen, len(metrics.Names))

	hf, err := os.Open(sum.HealthPath)
	require.NoError(t, err)
	defer hf.Close()
	health := readAll[export.HealthRow](t, hf)
	require.Len(t, health, 1)
	assert.Equal(t, int32(70), health[0].Score)
}

func TestSoftware_UnknownSoftware(t *testing.T) {
	m := storetest.NewMemory()
	src := service.NewInsightService(m, cachetest.NewMemory(), config.DefaultThresholds(), time.Hour, nil)

	_, err := export.Software(context.Background(), src, m.Company.ID, uuid.New(), t.TempDir())
	assert.Error(t, err)
}
