package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

type sessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
}

// SessionLookupService loads sessions, reading through the cache. Sessions are
// immutable once materialised so entries are never invalidated, only expired.
type SessionLookupService struct {
	repo   sessionRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionLookupService constructs the service. cache may be nil.
func NewSessionLookupService(repo sessionRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *SessionLookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionLookupService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Get returns the session or NOT_FOUND. A stored session with an invalid
// window is a VALIDATION_ERROR.
func (s *SessionLookupService) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	return readThrough(ctx, s.cache, sessionCacheKey(id), s.ttl,
		func(cached *models.Session) bool { return cached.ID == id && cached.Validate() == nil },
		func(ctx context.Context) (*models.Session, error) {
			session, err := s.repo.GetByID(ctx, id)
			switch {
			case err == nil:
				return session, nil
			case errors.Is(err, sql.ErrNoRows):
				return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
			case errors.Is(err, models.ErrInvalidSessionWindow):
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "session has an invalid time window")
			}
			s.logger.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		})
}

func sessionCacheKey(id string) string {
	return "session:" + id
}

// List returns the sessions matching filter in start order.
func (s *SessionLookupService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	sessions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}
