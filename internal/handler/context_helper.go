package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-lock/internal/middleware"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
	"github.com/noah-isme/sma-attendance-lock/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func parseStatuses(raw string) ([]models.UnlockRequestStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.EqualFold(raw, "ALL") {
		return []models.UnlockRequestStatus{
			models.UnlockRequestStatusPending,
			models.UnlockRequestStatusApproved,
			models.UnlockRequestStatusRejected,
		}, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]models.UnlockRequestStatus, 0, len(parts))
	for _, part := range parts {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		status := models.UnlockRequestStatus(part)
		if status != models.UnlockRequestStatusPending && !status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+part)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parsePage(c *gin.Context) (limit, offset int, err error) {
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
