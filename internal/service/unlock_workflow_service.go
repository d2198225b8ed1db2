package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-lock/internal/dto"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	"github.com/noah-isme/sma-attendance-lock/pkg/clock"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
	"github.com/noah-isme/sma-attendance-lock/pkg/logger"
)

const defaultReasonMaxLength = 500

// UnlockRequestStore persists unlock requests. Create and Resolve are atomic
// per session: at most one PENDING request exists for a session at any time.
// Create fails with ErrConflict while a request is open and with
// ErrIneligibleState once the newest request has been approved.
//
// Resolve on a request that is no longer PENDING returns the stored record
// together with ErrAlreadyResolved.
type UnlockRequestStore interface {
	Create(ctx context.Context, req *models.UnlockRequest) error
	Resolve(ctx context.Context, params models.ResolveUnlockParams) (*models.UnlockRequest, error)
	LatestForSession(ctx context.Context, sessionID string) (*models.UnlockRequest, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.UnlockRequest, error)
	List(ctx context.Context, filter models.UnlockRequestFilter) ([]models.UnlockRequest, error)
	CountPending(ctx context.Context, requestedBy string) (int, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionGetter interface {
	Get(ctx context.Context, id string) (*models.Session, error)
}

// UnlockWorkflowService enforces when an unlock request may be opened and
// records administrator decisions.
type UnlockWorkflowService struct {
	store           UnlockRequestStore
	sessions        sessionGetter
	audit           auditLogger
	clock           clock.Clock
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	reasonMaxLength int
}

// UnlockWorkflowOption configures the service.
type UnlockWorkflowOption func(*UnlockWorkflowService)

// WithUnlockClock overrides the wall clock.
func WithUnlockClock(c clock.Clock) UnlockWorkflowOption {
	return func(s *UnlockWorkflowService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithUnlockMetrics attaches metrics collection.
func WithUnlockMetrics(m *MetricsService) UnlockWorkflowOption {
	return func(s *UnlockWorkflowService) {
		s.metrics = m
	}
}

// WithReasonMaxLength caps the reason length in characters.
func WithReasonMaxLength(n int) UnlockWorkflowOption {
	return func(s *UnlockWorkflowService) {
		if n > 0 {
			s.reasonMaxLength = n
		}
	}
}

// WithUnlockValidator shares a validator instance.
func WithUnlockValidator(v *validator.Validate) UnlockWorkflowOption {
	return func(s *UnlockWorkflowService) {
		if v != nil {
			s.validator = v
		}
	}
}

// NewUnlockWorkflowService constructs the service with defaults.
func NewUnlockWorkflowService(store UnlockRequestStore, sessions sessionGetter, audit auditLogger, logger *zap.Logger, opts ...UnlockWorkflowOption) *UnlockWorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &UnlockWorkflowService{
		store:           store,
		sessions:        sessions,
		audit:           audit,
		clock:           &clock.System{},
		validator:       validator.New(),
		logger:          logger,
		reasonMaxLength: defaultReasonMaxLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// RequestUnlock opens a PENDING request for a completed session.
func (s *UnlockWorkflowService) RequestUnlock(ctx context.Context, req dto.CreateUnlockRequest, requesterID string) (*models.UnlockRequest, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateRequest(req, requesterID); err != nil {
		s.metrics.RecordUnlockRequest(UnlockOutcomeInvalid)
		return nil, err
	}
	if req.RequestType == "" {
		req.RequestType = models.UnlockRequestTypeLateMarking
	}

	session, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.RecordUnlockRequest(UnlockOutcomeInvalid)
			return nil, appErrors.Clone(appErrors.ErrValidation, "session does not exist")
		}
		s.recordFailure(err)
		return nil, err
	}

	log := logger.For(ctx, s.logger)
	now := s.clock.Now()
	if base := ClassifySession(session, now); base != models.BaseStatusCompleted {
		s.metrics.RecordUnlockRequest(UnlockOutcomeIneligible)
		log.Warn("unlock requested for a session that has not completed",
			zap.String("session_id", session.ID),
			zap.String("base_status", string(base)),
			zap.String("requested_by", requesterID))
		return nil, appErrors.Clone(appErrors.ErrIneligibleState, "unlock requests are only accepted once a session has completed")
	}

	record := &models.UnlockRequest{
		SessionID:   session.ID,
		RequestedBy: requesterID,
		Reason:      req.Reason,
		RequestType: req.RequestType,
		RequestedAt: now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		s.recordFailure(err)
		if errors.Is(err, appErrors.ErrConflict) || errors.Is(err, appErrors.ErrIneligibleState) || errors.Is(err, appErrors.ErrValidation) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unlock request")
	}

	s.metrics.RecordUnlockRequest(UnlockOutcomeCreated)
	log.Info("unlock request created",
		zap.String("request_id", record.ID),
		zap.String("session_id", record.SessionID),
		zap.String("requested_by", requesterID))
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &requesterID,
		Action:     models.AuditActionUnlockRequest,
		Resource:   "unlock_request",
		ResourceID: &record.ID,
		NewValues:  marshalAudit(record),
	})
	return record, nil
}

// Decide resolves a PENDING request. Deciding an already resolved request
// succeeds without changes and returns the stored record.
func (s *UnlockWorkflowService) Decide(ctx context.Context, requestID string, req dto.ResolveUnlockRequest, resolverID string) (*models.UnlockRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}
	if strings.TrimSpace(resolverID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resolver identity is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be APPROVED or REJECTED")
	}

	log := logger.For(ctx, s.logger)
	params := models.ResolveUnlockParams{
		ID:         requestID,
		Decision:   req.Decision,
		ResolvedBy: resolverID,
		ResolvedAt: s.clock.Now(),
		Remarks:    optionalString(req.Remarks),
	}
	record, err := s.store.Resolve(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrAlreadyResolved) && record != nil:
			s.metrics.RecordUnlockReplay(record.Status)
			fields := []zap.Field{
				zap.String("request_id", record.ID),
				zap.String("stored_decision", string(record.Status)),
				zap.String("submitted_decision", string(req.Decision)),
				zap.String("resolver", resolverID),
			}
			if record.Status != req.Decision {
				log.Warn("conflicting decision on resolved unlock request ignored", fields...)
			} else {
				log.Info("duplicate decision on resolved unlock request", fields...)
			}
			return record, nil
		case errors.Is(err, appErrors.ErrNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unlock request not found")
		case errors.Is(err, appErrors.ErrValidation):
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve unlock request")
	}

	s.metrics.RecordUnlockDecision(record.Status)
	log.Info("unlock request resolved",
		zap.String("request_id", record.ID),
		zap.String("session_id", record.SessionID),
		zap.String("decision", string(record.Status)),
		zap.String("resolver", resolverID))
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &resolverID,
		Action:     models.AuditActionUnlockResolve,
		Resource:   "unlock_request",
		ResourceID: &record.ID,
		OldValues:  []byte(`{"status":"PENDING"}`),
		NewValues:  marshalAudit(record),
	})
	return record, nil
}

// ListForTeacher returns the teacher's own requests, newest first.
func (s *UnlockWorkflowService) ListForTeacher(ctx context.Context, teacherID string, query dto.UnlockRequestQuery) ([]models.UnlockRequest, error) {
	if teacherID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	requests, err := s.store.List(ctx, models.UnlockRequestFilter{
		Status:      query.Status,
		RequestedBy: teacherID,
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unlock requests")
	}
	return requests, nil
}

// ListForAdmin returns the review queue. Without a status filter only
// PENDING requests are listed.
func (s *UnlockWorkflowService) ListForAdmin(ctx context.Context, query dto.UnlockRequestQuery) ([]models.UnlockRequest, error) {
	statuses := query.Status
	if len(statuses) == 0 {
		statuses = []models.UnlockRequestStatus{models.UnlockRequestStatusPending}
	}
	requests, err := s.store.List(ctx, models.UnlockRequestFilter{
		Status: statuses,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unlock requests")
	}
	return requests, nil
}

// History returns every request filed for a session, newest first. Teachers
// may only read the history of their own sessions.
func (s *UnlockWorkflowService) History(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.UnlockRequest, error) {
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
	requests, err := s.store.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unlock history")
	}
	return requests, nil
}

func (s *UnlockWorkflowService) validateRequest(req dto.CreateUnlockRequest, requesterID string) error {
	if strings.TrimSpace(requesterID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "requester identity is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unlock request payload")
	}
	if utf8.RuneCountInString(req.Reason) > s.reasonMaxLength {
		return appErrors.Clone(appErrors.ErrValidation, "reason is too long")
	}
	return nil
}

func (s *UnlockWorkflowService) recordFailure(err error) {
	switch {
	case errors.Is(err, appErrors.ErrConflict):
		s.metrics.RecordUnlockRequest(UnlockOutcomeConflict)
	case errors.Is(err, appErrors.ErrIneligibleState):
		s.metrics.RecordUnlockRequest(UnlockOutcomeIneligible)
	case errors.Is(err, appErrors.ErrValidation):
		s.metrics.RecordUnlockRequest(UnlockOutcomeInvalid)
	default:
		s.metrics.RecordUnlockRequest(UnlockOutcomeError)
	}
}

func (s *UnlockWorkflowService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "unlock-workflow"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
