package service

import (
	"time"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
)

// ClassifySession derives a session's base status from its window. Both the
// start and the end instant count as ONGOING.
func ClassifySession(session *models.Session, now time.Time) models.BaseStatus {
	switch {
	case now.Before(session.StartsAt):
		return models.BaseStatusUpcoming
	case now.After(session.EndsAt):
		return models.BaseStatusCompleted
	default:
		return models.BaseStatusOngoing
	}
}
