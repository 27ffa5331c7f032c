// Package benchmark compares a software's scores against peers in the same
// category. Peer data crosses company boundaries, so every comparison is
// withheld when fewer than the minimum number of peers contribute.
package benchmark

import (
	"sort"

	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
	"github.com/syntheticfinds/vendor-software-integration/internal/trajectory"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// MatchSimilarUse labels peers found by intended-use overlap rather than by
// a shared category.
const MatchSimilarUse = "similar use case"

// Stat places one value inside its peer distribution.
type Stat struct {
	Value      float64          `json:"value"`
	Average    float64          `json:"average"`
	Median     float64          `json:"median"`
	Percentile float64          `json:"percentile"`
	PeerCount  int              `json:"peer_count"`
	Metrics    map[string]*Stat `json:"metrics,omitempty"`
}

// Compare returns the benchmark of own against peers, or nil when fewer than
// minPeers values are available. The percentile uses the same interpolation
// as resolution-time percentiles.
func Compare(own float64, peers []float64, minPeers int) *Stat {
	if minPeers < 1 {
		minPeers = 1
	}
	if len(peers) < minPeers {
		return nil
	}
	return &Stat{
		Value:      own,
		Average:    analysis.Round1(analysis.Mean(peers)),
		Median:     analysis.Round1(analysis.Median(peers)),
		Percentile: analysis.Round1(analysis.PercentileRank(peers, own)),
		PeerCount:  len(peers),
	}
}

// SimilarByUse ranks candidates by intended-use token overlap, measured as
// shared tokens over the smaller token set. Candidates below threshold are
// dropped; at most limit are returned, most similar first.
func SimilarByUse(intendedUse string, candidates []models.Software, threshold float64, limit int) []models.Software {
	own := classify.Tokenize(intendedUse)
	if len(own) == 0 {
		return nil
	}
	type scored struct {
		sw    models.Software
		score float64
	}
	var matches []scored
	for _, c := range candidates {
		theirs := classify.Tokenize(c.IntendedUse)
		if len(theirs) == 0 {
			continue
		}
		overlap := 0
		for tok := range own {
			if theirs[tok] {
				overlap++
			}
		}
		sim := float64(overlap) / float64(min(len(own), len(theirs)))
		if sim >= threshold {
			matches = append(matches, scored{c, sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]models.Software, len(matches))
	for i, m := range matches {
		out[i] = m.sw
	}
	return out
}

// TrajectoryBenchmark compares overall and per-stage smoothness.
type TrajectoryBenchmark struct {
	Overall *Stat                  `json:"overall"`
	Stages  map[models.Stage]*Stat `json:"stages"`
}

// Trajectories benchmarks own against peer trajectories. Stages the subject
// has no score for are skipped. Returns nil when the overall comparison is
// withheld.
func Trajectories(own trajectory.Trajectory, peers []trajectory.Trajectory, minPeers int) *TrajectoryBenchmark {
	if own.OverallSmoothness == nil {
		return nil
	}
	var overall []float64
	stageScores := make(map[models.Stage][]float64)
	dimScores := make(map[models.Stage]map[string][]float64)
	for _, p := range peers {
		if p.OverallSmoothness != nil {
			overall = append(overall, *p.OverallSmoothness)
		}
		for _, st := range p.Stages {
			if st.Smoothness == nil {
				continue
			}
			stageScores[st.Name] = append(stageScores[st.Name], *st.Smoothness)
			if dimScores[st.Name] == nil {
				dimScores[st.Name] = make(map[string][]float64)
			}
			for d, v := range st.Dimensions {
				dimScores[st.Name][d] = append(dimScores[st.Name][d], v.Score)
			}
		}
	}

	out := &TrajectoryBenchmark{
		Overall: Compare(*own.OverallSmoothness, overall, minPeers),
		Stages:  make(map[models.Stage]*Stat),
	}
	if out.Overall == nil {
		return nil
	}
	for _, st := range own.Stages {
		if st.Smoothness == nil {
			continue
		}
		s := Compare(*st.Smoothness, stageScores[st.Name], minPeers)
		if s == nil {
			continue
		}
		for d, v := range st.Dimensions {
			if ds := Compare(v.Score, dimScores[st.Name][d], minPeers); ds != nil {
				if s.Metrics == nil {
					s.Metrics = make(map[string]*Stat)
				}
				s.Metrics[d] = ds
			}
		}
		out.Stages[st.Name] = s
	}
	return out
}

// HealthBenchmark compares the composite score and each category.
type HealthBenchmark struct {
	Overall    *Stat            `json:"overall"`
	Categories map[string]*Stat `json:"categories"`
}

// HealthScores benchmarks own against each peer's latest health score.
func HealthScores(own models.HealthScore, peers []models.HealthScore, minPeers int) *HealthBenchmark {
	overall := make([]float64, 0, len(peers))
	for _, p := range peers {
		overall = append(overall, float64(p.Score))
	}
	out := &HealthBenchmark{
		Overall:    Compare(float64(own.Score), overall, minPeers),
		Categories: make(map[string]*Stat),
	}
	if out.Overall == nil {
		return nil
	}
	for cat, v := range own.CategoryBreakdown {
		var values []float64
		for _, p := range peers {
			if pv, ok := p.CategoryBreakdown[cat]; ok {
				values = append(values, float64(pv))
			}
		}
		if s := Compare(float64(v), values, minPeers); s != nil {
			out.Categories[cat] = s
		}
	}
	return out
}
