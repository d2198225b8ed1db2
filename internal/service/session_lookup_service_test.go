package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

type sessionRepoStub struct {
	sessions map[string]*models.Session
	err      error
	calls    int
}

func (s *sessionRepoStub) GetByID(ctx context.Context, id string) (*models.Session, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if session, ok := s.sessions[id]; ok {
		copy := *session
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *sessionRepoStub) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	return nil, s.err
}

func TestSessionLookupReadsThroughCache(t *testing.T) {
	session := mathSession(t)
	repo := &sessionRepoStub{sessions: map[string]*models.Session{"sess-1": session}}
	cacheRepo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, nil, true)
	svc := NewSessionLookupService(repo, cache, 30*time.Minute, nil)

	first, err := svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	second, err := svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.True(t, first.StartsAt.Equal(second.StartsAt))
	assert.True(t, first.EndsAt.Equal(second.EndsAt))
	assert.Equal(t, 30*time.Minute, cacheRepo.ttls["session:sess-1"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
}

func TestSessionLookupWithoutCache(t *testing.T) {
	repo := &sessionRepoStub{sessions: map[string]*models.Session{"sess-1": mathSession(t)}}
	svc := NewSessionLookupService(repo, nil, 0, nil)

	_, err := svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestSessionLookupErrors(t *testing.T) {
	repo := &sessionRepoStub{sessions: map[string]*models.Session{}}
	svc := NewSessionLookupService(repo, nil, 0, nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Get(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	repo.err = fmt.Errorf("session bad: %w", models.ErrInvalidSessionWindow)
	_, err = svc.Get(context.Background(), "bad")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	repo.err = errors.New("connection refused")
	_, err = svc.Get(context.Background(), "sess-1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestCacheServiceDisabled(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), nil, 0, nil, false)
	var dest models.Session
	hit, err := cache.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.Set(context.Background(), "k", dest, 0))
	assert.NoError(t, cache.Invalidate(context.Background(), "k"))
}

func TestSessionLookupEvictsMismatchedSnapshot(t *testing.T) {
	session := mathSession(t)
	repo := &sessionRepoStub{sessions: map[string]*models.Session{"sess-1": session}}
	cacheRepo := newMemoryCacheRepo()
	other := *session
	other.ID = "sess-9"
	require.NoError(t, cacheRepo.Set(context.Background(), sessionCacheKey("sess-1"), other, time.Minute))

	svc := NewSessionLookupService(repo, NewCacheService(cacheRepo, nil, time.Minute, nil, true), time.Minute, nil)
	got, err := svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, 1, repo.calls)
}
