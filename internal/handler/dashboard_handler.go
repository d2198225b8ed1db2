package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-lock/internal/dto"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
	"github.com/noah-isme/sma-attendance-lock/pkg/response"
)

type dashboardService interface {
	Teacher(ctx context.Context, teacherID string, date time.Time) (*dto.TeacherDashboardResponse, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Teacher godoc
// @Summary Teacher day view with effective session statuses
// @Tags Dashboard
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /teacher/dashboard [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var date time.Time
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	start := time.Now()
	summary, err := h.service.Teacher(c.Request.Context(), claims.UserID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, map[string]interface{}{
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}
