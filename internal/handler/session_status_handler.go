package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-lock/internal/dto"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
	"github.com/noah-isme/sma-attendance-lock/pkg/response"
)

type sessionStatusService interface {
	GetEffectiveStatus(ctx context.Context, sessionID string, at *time.Time) (*models.EffectiveStatusView, error)
	EditCheck(ctx context.Context, sessionID string, actor *models.JWTClaims) (*dto.EditCheckResponse, error)
}

// SessionStatusHandler serves effective status queries.
type SessionStatusHandler struct {
	service sessionStatusService
}

// NewSessionStatusHandler constructs the handler.
func NewSessionStatusHandler(service sessionStatusService) *SessionStatusHandler {
	return &SessionStatusHandler{service: service}
}

// Status godoc
// @Summary Effective status of a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param at query string false "RFC3339 instant, defaults to now"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/status [get]
func (h *SessionStatusHandler) Status(c *gin.Context) {
	var at *time.Time
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at must be an RFC3339 timestamp"))
			return
		}
		at = &parsed
	}
	view, err := h.service.GetEffectiveStatus(c.Request.Context(), c.Param("id"), at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// EditCheck godoc
// @Summary Whether attendance for the session may be marked or edited now
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/edit-check [get]
func (h *SessionStatusHandler) EditCheck(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	check, err := h.service.EditCheck(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check)
}
