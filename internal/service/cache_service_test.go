package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

type memoryCacheRepo struct {
	items   map[string][]byte
	getErr    error
	deleteErr error
	deleted   []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for key := range m.items {
		delete(m.items, key)
	}
	return nil
}

func TestRememberLoadsOnceThenHits(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	calls := 0
	load := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"total": 3}, nil
	}

	first, hit, err := Remember(context.Background(), cache, "k", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, first["total"])

	second, hit, err := Remember(context.Background(), cache, "k", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, second["total"])
	assert.Equal(t, 1, calls)
}

func TestRememberFailsOpenOnCacheError(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis down")
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	value, hit, err := Remember(context.Background(), cache, "k", 0, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, value)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)

	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.items)
	hit, err := cache.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, cache.Invalidate(context.Background(), "*"))
	assert.Empty(t, repo.deleted)
}
