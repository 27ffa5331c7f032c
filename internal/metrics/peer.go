package metrics

import (
	"time"

	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// AttachPeers sets r.Peer to the per-day peer average of the same metric,
// computed over each peer's signals with the same window, stage and days as
// r. Peers with no signals at all are not counted. A day is published only
// when at least minPeers peers have a value for it; when fewer than minPeers
// peers remain, or no day qualifies, r.Peer stays nil.
func AttachPeers(r *Result, category string, peers [][]models.SignalEvent, p Params, minPeers int) error {
	r.Peer = nil
	if minPeers < 1 {
		minPeers = 1
	}
	if len(r.days) == 0 {
		return nil
	}
	calc := calculators[r.Metric]
	p.WindowDays = r.WindowDays
	p.StageTopic = r.StageTopic
	p, err := p.resolve(r.Metric)
	if err != nil {
		return err
	}

	sums := make([]float64, len(r.days))
	counts := make([]int, len(r.days))
	peerCount := 0
	for _, events := range peers {
		if len(events) == 0 {
			continue
		}
		peerCount++
		points := series(calc, prepare(events, p), r.days, p.WindowDays)
		for i, pt := range points {
			if v, ok := calc.primary(pt); ok {
				sums[i] += v
				counts[i]++
			}
		}
	}
	if peerCount < minPeers {
		return nil
	}

	out := &PeerSeries{Category: category, PeerCount: peerCount, Points: make([]PeerPoint, 0, len(r.days))}
	for i, d := range r.days {
		if counts[i] < minPeers {
			continue
		}
		out.Points = append(out.Points, PeerPoint{
			Date:  d.Format(time.DateOnly),
			Value: analysis.Round1(sums[i] / float64(counts[i])),
		})
	}
	if len(out.Points) == 0 {
		return nil
	}
	r.Peer = out
	return nil
}

// LatestValues computes the latest primary value of a metric for each peer.
// Peers without a value (no signals, or no data for the metric) are skipped.
func LatestValues(name Name, peers [][]models.SignalEvent, p Params) ([]float64, error) {
	var out []float64
	for _, events := range peers {
		if len(events) == 0 {
			continue
		}
		r, err := Compute(name, events, p)
		if err != nil {
			return nil, err
		}
		if v, ok := r.LatestValue(); ok {
			out = append(out, v)
		}
	}
	return out, nil
}
