// Package cachetest provides an in-process cache.Cache for tests.
package cachetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache"
)

// Memory ignores TTLs. Set the Err fields to force failures.
type Memory struct {
	mu       sync.Mutex
	Data     map[string][]byte
	Jobs     map[uuid.UUID]string
	Counters map[string]int64

	PingErr error
	GetErr  error
	IncrErr error
}

var _ cache.Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		Data:     map[string][]byte{},
		Jobs:     map[uuid.UUID]string{},
		Counters: map[string]int64{},
	}
}

func (m *Memory) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	v, ok := m.Data[key]
	return v, ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	return nil
}

func (m *Memory) Ping(context.Context) error { return m.PingErr }

func (m *Memory) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs[jobID] = status
	return nil
}

func (m *Memory) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Jobs[jobID]
	return s, ok, nil
}

func (m *Memory) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrErr != nil {
		return 0, m.IncrErr
	}
	m.Counters[key]++
	return m.Counters[key], nil
}

// JobStatus returns the mirrored status of a job.
func (m *Memory) JobStatus(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Jobs[id]
}
