package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/benchmark"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Snapshot is one consistent read of a software's registration and signals.
// Every calculator run for a request works from the same snapshot.
type Snapshot struct {
	Software *models.Software
	Signals  []models.SignalEvent
	Today    time.Time
}

// LoadSnapshot reads sw and all of its signals. Unknown software returns
// store.ErrNotFound.
func LoadSnapshot(ctx context.Context, st store.Store, companyID, softwareID uuid.UUID, today time.Time) (*Snapshot, error) {
	sw, err := st.GetSoftware(ctx, softwareID, companyID)
	if err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}
	signals, err := st.ListSignals(ctx, store.SignalFilter{CompanyID: companyID, SoftwareID: softwareID})
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	return &Snapshot{Software: sw, Signals: signals, Today: today}, nil
}

// peerGroup is the set of software a subject is compared against.
type peerGroup struct {
	Label    string
	Software []*models.Software
	Signals  [][]models.SignalEvent
}

func (g *peerGroup) ids() []uuid.UUID {
	out := make([]uuid.UUID, len(g.Software))
	for i, sw := range g.Software {
		out[i] = sw.ID
	}
	return out
}

// candidatePool bounds how many software rows intended-use matching scans.
const candidatePool = 100

// findPeers returns active software sharing sw's category. When the category
// yields fewer than MinPeers, software with a similar intended use is tried.
func findPeers(ctx context.Context, st store.Store, th config.Thresholds, sw *models.Software) (*peerGroup, error) {
	group := &peerGroup{Label: sw.AutoCategory}
	peers, err := st.ListPeerSoftware(ctx, sw.AutoCategory, sw.ID, th.PeerLimit)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	group.Software = peers

	if len(peers) < th.MinPeers && sw.IntendedUse != "" {
		pool, err := st.ListActiveSoftware(ctx, sw.ID, candidatePool)
		if err != nil {
			return nil, fmt.Errorf("list peer candidates: %w", err)
		}
		candidates := make([]models.Software, len(pool))
		for i, c := range pool {
			candidates[i] = *c
		}
		similar := benchmark.SimilarByUse(sw.IntendedUse, candidates, th.PeerSimilarity, th.PeerLimit)
		if len(similar) > len(peers) {
			group.Label = benchmark.MatchSimilarUse
			group.Software = make([]*models.Software, len(similar))
			for i := range similar {
				group.Software[i] = &similar[i]
			}
		}
	}

	bySoftware, err := st.ListSignalsForSoftware(ctx, group.ids())
	if err != nil {
		return nil, fmt.Errorf("load peer signals: %w", err)
	}
	group.Signals = make([][]models.SignalEvent, len(group.Software))
	for i, p := range group.Software {
		group.Signals[i] = bySoftware[p.ID]
	}
	return group, nil
}
