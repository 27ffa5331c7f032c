package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Bool(1), args.Error(2)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error {
	return m.Called(ctx, jobID, status, ttl).Error(0)
}

func (m *mockCache) GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, bool, error) {
	args := m.Called(ctx, jobID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	args := m.Called(ctx, key, expiry)
	return args.Get(0).(int64), args.Error(1)
}

// missingCache returns a cache that always misses and accepts writes.
func missingCache() *mockCache {
	c := &mockCache{}
	c.On("Get", mock.Anything, mock.Anything).Return(nil, false, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.On("SetJobStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return c
}
