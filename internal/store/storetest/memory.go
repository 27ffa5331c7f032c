// Package storetest provides an in-memory store.Store for tests of the
// packages layered on top of the store.
package storetest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Memory is a map-backed Store. It enforces the same not-found, dedup and
// job transition rules as the Postgres store. Set the Err fields to force
// failures.
type Memory struct {
	mu sync.Mutex

	Company   models.Company
	APIKeys   map[uuid.UUID]*models.APIKey
	Software  map[uuid.UUID]*models.Software
	Signals   []models.SignalEvent
	Scores    []*models.HealthScore
	Jobs      map[uuid.UUID]*models.Job
	Pinged    int
	PingErr   error
	ListErr   error
	CreateErr error
}

var _ store.Store = (*Memory)(nil)

// NewMemory returns an empty store seeded with a default company.
func NewMemory() *Memory {
	return &Memory{
		Company:  models.Company{ID: uuid.New(), Name: "default", CreatedAt: time.Now().UTC()},
		APIKeys:  map[uuid.UUID]*models.APIKey{},
		Software: map[uuid.UUID]*models.Software{},
		Jobs:     map[uuid.UUID]*models.Job{},
	}
}

// AddSoftware registers sw, filling ID, status and timestamps when unset.
func (m *Memory) AddSoftware(sw models.Software) *models.Software {
	if sw.ID == uuid.Nil {
		sw.ID = uuid.New()
	}
	if sw.CompanyID == uuid.Nil {
		sw.CompanyID = m.Company.ID
	}
	if sw.Status == "" {
		sw.Status = models.SoftwareStatusActive
	}
	if sw.CreatedAt.IsZero() {
		sw.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Software[sw.ID] = &sw
	return &sw
}

// JobStatus returns the current status of a job, or "".
func (m *Memory) JobStatus(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.Jobs[id]; ok {
		return j.Status
	}
	return ""
}

// Job returns a copy of a stored job.
func (m *Memory) Job(id uuid.UUID) (models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *j, true
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pinged++
	return m.PingErr
}

func (m *Memory) GetDefaultCompany(context.Context) (*models.Company, error) {
	c := m.Company
	return &c, nil
}

func (m *Memory) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.APIKeys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			c := *k
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.APIKeys[id]; ok {
		now := time.Now().UTC()
		k.LastUsedAt = &now
	}
	return nil
}

func (m *Memory) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.APIKeys[key.ID]; ok {
		return store.ErrDuplicateKey
	}
	c := *key
	m.APIKeys[key.ID] = &c
	return nil
}

func (m *Memory) ListAPIKeys(_ context.Context, companyID uuid.UUID) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.APIKeys {
		if k.CompanyID == companyID && k.DeletedAt == nil {
			c := *k
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) RevokeAPIKey(_ context.Context, id uuid.UUID, companyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.APIKeys[id]
	if !ok || k.CompanyID != companyID || k.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	return nil
}

func (m *Memory) CreateSoftware(_ context.Context, sw *models.Software) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, existing := range m.Software {
		if existing.ID == sw.ID || (existing.CompanyID == sw.CompanyID &&
			existing.VendorName == sw.VendorName && existing.SoftwareName == sw.SoftwareName) {
			return store.ErrDuplicateKey
		}
	}
	if sw.Status == "" {
		sw.Status = models.SoftwareStatusActive
	}
	c := *sw
	m.Software[sw.ID] = &c
	return nil
}

func (m *Memory) GetSoftware(_ context.Context, id uuid.UUID, companyID uuid.UUID) (*models.Software, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw, ok := m.Software[id]
	if !ok || sw.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	c := *sw
	return &c, nil
}

func (m *Memory) ListSoftware(_ context.Context, companyID uuid.UUID) ([]*models.Software, error) {
	return m.selectSoftware(func(sw *models.Software) bool { return sw.CompanyID == companyID }, 0), nil
}

func (m *Memory) ListPeerSoftware(_ context.Context, category string, excludeID uuid.UUID, limit int) ([]*models.Software, error) {
	if category == "" {
		return nil, nil
	}
	return m.selectSoftware(func(sw *models.Software) bool {
		return sw.ID != excludeID && sw.AutoCategory == category && sw.Status == models.SoftwareStatusActive
	}, limit), nil
}

func (m *Memory) ListActiveSoftware(_ context.Context, excludeID uuid.UUID, limit int) ([]*models.Software, error) {
	return m.selectSoftware(func(sw *models.Software) bool {
		return sw.ID != excludeID && sw.IntendedUse != "" && sw.Status == models.SoftwareStatusActive
	}, limit), nil
}

func (m *Memory) selectSoftware(keep func(*models.Software) bool, limit int) []*models.Software {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Software
	for _, sw := range m.Software {
		if keep(sw) {
			c := *sw
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SoftwareName != out[j].SoftwareName {
			return out[i].SoftwareName < out[j].SoftwareName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Memory) InsertSignals(_ context.Context, events []models.SignalEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, e := range events {
		if e.SourceID != nil && m.hasSource(e) {
			continue
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		m.Signals = append(m.Signals, e)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) hasSource(e models.SignalEvent) bool {
	for _, s := range m.Signals {
		if s.SourceID != nil && *s.SourceID == *e.SourceID && s.SourceType == e.SourceType &&
			s.SoftwareID == e.SoftwareID && s.CompanyID == e.CompanyID {
			return true
		}
	}
	return false
}

func (m *Memory) ListSignals(_ context.Context, f store.SignalFilter) ([]models.SignalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.SignalEvent
	for _, e := range m.Signals {
		switch {
		case e.CompanyID != f.CompanyID:
		case f.SoftwareID != uuid.Nil && e.SoftwareID != f.SoftwareID:
		case f.SourceType != "" && e.SourceType != f.SourceType:
		case f.Severity != "" && e.Severity != f.Severity:
		case !f.Since.IsZero() && (!e.HasTimestamp() || e.OccurredAt.Before(f.Since)):
		case !f.Until.IsZero() && (!e.HasTimestamp() || !e.OccurredAt.Before(f.Until)):
		default:
			out = append(out, e)
		}
	}
	sortSignals(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) CountSignals(_ context.Context, companyID, softwareID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Signals {
		if e.CompanyID == companyID && e.SoftwareID == softwareID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListSignalsForSoftware(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.SignalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID][]models.SignalEvent, len(ids))
	for _, e := range m.Signals {
		if slices.Contains(ids, e.SoftwareID) {
			out[e.SoftwareID] = append(out[e.SoftwareID], e)
		}
	}
	for id := range out {
		sortSignals(out[id])
	}
	return out, nil
}

func sortSignals(events []models.SignalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.HasTimestamp() != b.HasTimestamp() {
			return a.HasTimestamp()
		}
		return a.OccurredAt.Before(b.OccurredAt)
	})
}

func (m *Memory) CreateHealthScore(_ context.Context, h *models.HealthScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	c := *h
	m.Scores = append(m.Scores, &c)
	return nil
}

func (m *Memory) LatestHealthScore(ctx context.Context, companyID, softwareID uuid.UUID) (*models.HealthScore, error) {
	scores, _ := m.ListHealthScores(ctx, companyID, softwareID, 1)
	if len(scores) == 0 {
		return nil, store.ErrNotFound
	}
	return scores[0], nil
}

func (m *Memory) ListHealthScores(_ context.Context, companyID, softwareID uuid.UUID, limit int) ([]*models.HealthScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.HealthScore
	for _, h := range m.Scores {
		if h.CompanyID == companyID && h.SoftwareID == softwareID {
			c := *h
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) LatestHealthScores(_ context.Context, ids []uuid.UUID) ([]*models.HealthScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[uuid.UUID]*models.HealthScore{}
	for _, h := range m.Scores {
		if !slices.Contains(ids, h.SoftwareID) {
			continue
		}
		if cur, ok := latest[h.SoftwareID]; !ok || h.CreatedAt.After(cur.CreatedAt) {
			latest[h.SoftwareID] = h
		}
	}
	var out []*models.HealthScore
	for _, id := range ids {
		if h, ok := latest[id]; ok {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	c := *job
	m.Jobs[job.ID] = &c
	return nil
}

func (m *Memory) GetJob(_ context.Context, id uuid.UUID, companyID uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[id]
	if !ok || j.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	c := *j
	return &c, nil
}

var transitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (m *Memory) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(transitions[j.Status], status) {
		return store.ErrInvalidTransition
	}
	upd := store.ApplyJobUpdates(opts...)
	now := time.Now().UTC()
	j.Status = status
	j.UpdatedAt = now
	switch status {
	case models.JobStatusRunning:
		j.StartedAt = &now
	default:
		j.CompletedAt = &now
	}
	if upd.ErrorMessage != nil {
		j.ErrorMessage = upd.ErrorMessage
	}
	if upd.HealthScoreID != nil {
		j.HealthScoreID = upd.HealthScoreID
	}
	return nil
}
