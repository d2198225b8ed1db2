package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-lock/internal/dto"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	"github.com/noah-isme/sma-attendance-lock/pkg/clock"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

// SessionStatusService answers status queries for a single session.
type SessionStatusService struct {
	sessions sessionGetter
	resolver *EffectiveStatusResolver
	clock    clock.Clock
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSessionStatusService constructs the service. A nil clock reads UTC wall time.
func NewSessionStatusService(sessions sessionGetter, resolver *EffectiveStatusResolver, c clock.Clock, metrics *MetricsService, logger *zap.Logger) *SessionStatusService {
	if c == nil {
		c = &clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStatusService{sessions: sessions, resolver: resolver, clock: c, metrics: metrics, logger: logger}
}

// GetEffectiveStatus resolves the session's status at the given instant, or
// at the clock's current instant when at is nil.
func (s *SessionStatusService) GetEffectiveStatus(ctx context.Context, sessionID string, at *time.Time) (*models.EffectiveStatusView, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if at != nil {
		now = *at
	}
	view, err := s.resolver.Resolve(ctx, session, now)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEffectiveStatus(view.Status)
	return view, nil
}

// EditCheck reports whether the attendance screen may mark or edit the
// session right now. Teachers only see their own sessions.
func (s *SessionStatusService) EditCheck(ctx context.Context, sessionID string, actor *models.JWTClaims) (*dto.EditCheckResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && session.TeacherID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	view, err := s.resolver.Resolve(ctx, session, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEffectiveStatus(view.Status)
	return &dto.EditCheckResponse{
		SessionID: session.ID,
		Status:    view.Status,
		CanMark:   view.CanMark,
		CanEdit:   view.CanEdit,
	}, nil
}
