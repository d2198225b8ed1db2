package service

import (
	"context"
	"time"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

type latestRequestReader interface {
	LatestForSession(ctx context.Context, sessionID string) (*models.UnlockRequest, error)
}

// EffectiveStatusResolver overlays the unlock workflow on the base status.
// It only reads.
type EffectiveStatusResolver struct {
	requests latestRequestReader
}

// NewEffectiveStatusResolver constructs the resolver.
func NewEffectiveStatusResolver(requests latestRequestReader) *EffectiveStatusResolver {
	return &EffectiveStatusResolver{requests: requests}
}

// Resolve computes the effective status of session at now.
func (r *EffectiveStatusResolver) Resolve(ctx context.Context, session *models.Session, now time.Time) (*models.EffectiveStatusView, error) {
	if session == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session is required")
	}
	base := ClassifySession(session, now)
	latest, err := r.requests.LatestForSession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest unlock request")
	}
	return buildEffectiveStatus(session.ID, base, latest, now), nil
}

func buildEffectiveStatus(sessionID string, base models.BaseStatus, latest *models.UnlockRequest, now time.Time) *models.EffectiveStatusView {
	view := &models.EffectiveStatusView{
		SessionID:     sessionID,
		Status:        models.EffectiveStatus(base),
		BaseStatus:    base,
		LatestRequest: latest,
		EvaluatedAt:   now,
	}
	if latest != nil {
		switch latest.Status {
		case models.UnlockRequestStatusPending:
			view.Status = models.EffectiveStatusPending
		case models.UnlockRequestStatusApproved:
			view.Status = models.EffectiveStatusUnlocked
		case models.UnlockRequestStatusRejected:
			view.Annotation = models.EffectiveStatusRejected
		}
	}
	view.CanMark = base == models.BaseStatusOngoing
	view.CanEdit = view.Status == models.EffectiveStatusUnlocked
	view.CanRequestUnlock = base == models.BaseStatusCompleted && view.Status == models.EffectiveStatusCompleted
	return view
}
