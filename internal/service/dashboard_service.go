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

type sessionLister interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
}

type pendingCounter interface {
	CountPending(ctx context.Context, requestedBy string) (int, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Sessions sessionLister
	Requests pendingCounter
	Resolver *EffectiveStatusResolver
	Clock    clock.Clock
	Metrics  *MetricsService
	Logger   *zap.Logger
}

// DashboardService composes the teacher's day view.
type DashboardService struct {
	sessions sessionLister
	requests pendingCounter
	resolver *EffectiveStatusResolver
	clock    clock.Clock
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	c := params.Clock
	if c == nil {
		c = &clock.System{}
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		sessions: params.Sessions,
		requests: params.Requests,
		resolver: params.Resolver,
		clock:    c,
		metrics:  params.Metrics,
		logger:   logger,
	}
}

// Teacher lists the teacher's sessions on date with their effective status.
// A zero date selects today in the clock's location.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string, date time.Time) (*dto.TeacherDashboardResponse, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	now := s.clock.Now()
	if date.IsZero() {
		date = now
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	sessions, err := s.sessions.List(ctx, models.SessionFilter{TeacherID: teacherID, Date: day})
	if err != nil {
		return nil, err
	}

	resp := &dto.TeacherDashboardResponse{
		Date:          day.Format("2006-01-02"),
		TotalSessions: len(sessions),
		Sessions:      make([]dto.TeacherDashboardSession, 0, len(sessions)),
		GeneratedAt:   now,
	}
	for i := range sessions {
		view, err := s.resolver.Resolve(ctx, &sessions[i], now)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordEffectiveStatus(view.Status)
		if view.BaseStatus == models.BaseStatusCompleted {
			resp.CompletedSessions++
		}
		resp.Sessions = append(resp.Sessions, dto.TeacherDashboardSession{Session: sessions[i], Status: *view})
	}

	pending, err := s.requests.CountPending(ctx, teacherID)
	if err != nil {
		s.logger.Warn("failed to count pending unlock requests", zap.String("teacher_id", teacherID), zap.Error(err))
	} else {
		resp.PendingUnlockRequests = pending
	}
	return resp, nil
}
