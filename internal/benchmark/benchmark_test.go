package benchmark_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntheticfinds/vendor-software-integration/internal/benchmark"
	"github.com/syntheticfinds/vendor-software-integration/internal/trajectory"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

func TestCompare(t *testing.T) {
	s := benchmark.Compare(60, []float64{40, 50, 70, 80}, 3)
	require.NotNil(t, s)
	assert.Equal(t, 4, s.PeerCount)
	assert.InDelta(t, 60.0, s.Average, 1e-9)
	assert.InDelta(t, 60.0, s.Median, 1e-9)
	assert.InDelta(t, 50.0, s.Percentile, 1e-9)
	assert.InDelta(t, 60.0, s.Value, 1e-9)
}

func TestCompare_KAnonymity(t *testing.T) {
	tests := []struct {
		name     string
		peers    []float64
		minPeers int
		wantNil  bool
	}{
		{"no peers", nil, 3, true},
		{"below minimum", []float64{1, 2}, 3, true},
		{"at minimum", []float64{1, 2, 3}, 3, false},
		{"zero minimum still needs one peer", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := benchmark.Compare(5, tt.peers, tt.minPeers)
			if tt.wantNil {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.GreaterOrEqual(t, s.PeerCount, tt.minPeers)
		})
	}
}

func TestCompare_PercentileBounds(t *testing.T) {
	peers := []float64{10, 20, 30}
	assert.InDelta(t, 0.0, benchmark.Compare(5, peers, 1).Percentile, 1e-9)
	assert.InDelta(t, 100.0, benchmark.Compare(99, peers, 1).Percentile, 1e-9)
	assert.InDelta(t, 25.0, benchmark.Compare(15, peers, 1).Percentile, 1e-9)
}

func TestSimilarByUse(t *testing.T) {
	candidates := []models.Software{
		{SoftwareName: "A", IntendedUse: "customer support ticketing and chat"},
		{SoftwareName: "B", IntendedUse: "payroll"},
		{SoftwareName: "C", IntendedUse: "support ticketing"},
		{SoftwareName: "D", IntendedUse: ""},
		{SoftwareName: "E", IntendedUse: "customer chat widget"},
	}
	got := benchmark.SimilarByUse("Customer support ticketing", candidates, 0.4, 20)

	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.SoftwareName
	}
	// A and C share every token of the smaller set; E shares one of three.
	assert.Equal(t, []string{"A", "C"}, names[:2])
	assert.NotContains(t, names, "B")
	assert.NotContains(t, names, "D")

	assert.Len(t, benchmark.SimilarByUse("customer support ticketing", candidates, 0.4, 1), 1)
	assert.Empty(t, benchmark.SimilarByUse("the and", candidates, 0.4, 20))
}

func trajWith(overall float64, stageScore float64) trajectory.Trajectory {
	o, s := overall, stageScore
	return trajectory.Trajectory{
		OverallSmoothness: &o,
		Stages: []trajectory.Stage{{
			Name:       models.StageOnboarding,
			Smoothness: &s,
			Dimensions: map[string]trajectory.Dimension{
				trajectory.DimFriction: {Score: stageScore, Confidence: models.ConfidenceHigh},
			},
		}, {
			Name: models.StageIntegration,
		}},
	}
}

func TestTrajectories(t *testing.T) {
	own := trajWith(70, 70)
	peers := []trajectory.Trajectory{trajWith(50, 40), trajWith(60, 60), trajWith(80, 90)}

	b := benchmark.Trajectories(own, peers, 3)
	require.NotNil(t, b)
	assert.Equal(t, 3, b.Overall.PeerCount)
	assert.InDelta(t, 75.0, b.Overall.Percentile, 1e-9)

	onb := b.Stages[models.StageOnboarding]
	require.NotNil(t, onb)
	require.Contains(t, onb.Metrics, trajectory.DimFriction)
	assert.InDelta(t, 63.3, onb.Metrics[trajectory.DimFriction].Average, 1e-9)
	assert.NotContains(t, b.Stages, models.StageIntegration)

	assert.Nil(t, benchmark.Trajectories(own, peers[:2], 3))
	assert.Nil(t, benchmark.Trajectories(trajectory.Trajectory{}, peers, 3))
}

func TestHealthScores(t *testing.T) {
	hs := func(score, rel int) models.HealthScore {
		return models.HealthScore{Score: score, CategoryBreakdown: map[string]int{models.CategoryReliability: rel}}
	}
	b := benchmark.HealthScores(hs(72, 50), []models.HealthScore{hs(60, 40), hs(70, 60), hs(90, 80)}, 3)
	require.NotNil(t, b)
	assert.InDelta(t, 73.3, b.Overall.Average, 1e-9)
	assert.InDelta(t, 70.0, b.Overall.Median, 1e-9)
	require.Contains(t, b.Categories, models.CategoryReliability)
	assert.InDelta(t, 25.0, b.Categories[models.CategoryReliability].Percentile, 1e-9)

	assert.Nil(t, benchmark.HealthScores(hs(72, 50), []models.HealthScore{hs(60, 40)}, 3))
}
