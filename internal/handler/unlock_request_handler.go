package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-lock/internal/dto"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
	"github.com/noah-isme/sma-attendance-lock/pkg/response"
)

type unlockWorkflow interface {
	RequestUnlock(ctx context.Context, req dto.CreateUnlockRequest, requesterID string) (*models.UnlockRequest, error)
	Decide(ctx context.Context, requestID string, req dto.ResolveUnlockRequest, resolverID string) (*models.UnlockRequest, error)
	ListForTeacher(ctx context.Context, teacherID string, query dto.UnlockRequestQuery) ([]models.UnlockRequest, error)
	ListForAdmin(ctx context.Context, query dto.UnlockRequestQuery) ([]models.UnlockRequest, error)
	History(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.UnlockRequest, error)
}

type ledgerExporter interface {
	ExportLedger(ctx context.Context, format dto.ExportFormat, statuses []models.UnlockRequestStatus, actorID string) (*dto.ExportFile, error)
}

// UnlockRequestHandler exposes the unlock request workflow.
type UnlockRequestHandler struct {
	workflow unlockWorkflow
	exporter ledgerExporter
}

// NewUnlockRequestHandler constructs the handler.
func NewUnlockRequestHandler(workflow unlockWorkflow, exporter ledgerExporter) *UnlockRequestHandler {
	return &UnlockRequestHandler{workflow: workflow, exporter: exporter}
}

// Create godoc
// @Summary Request an unlock for a completed session
// @Tags UnlockRequests
// @Accept json
// @Produce json
// @Param payload body dto.CreateUnlockRequest true "Unlock request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /unlock-requests [post]
func (h *UnlockRequestHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateUnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid unlock request payload"))
		return
	}
	record, err := h.workflow.RequestUnlock(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Mine godoc
// @Summary List the caller's unlock requests
// @Tags UnlockRequests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /unlock-requests/mine [get]
func (h *UnlockRequestHandler) Mine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	query, err := buildUnlockQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requests, err := h.workflow.ListForTeacher(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{"count": len(requests)})
}

// History godoc
// @Summary Unlock request history of a session
// @Tags UnlockRequests
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/unlock-requests [get]
func (h *UnlockRequestHandler) History(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	requests, err := h.workflow.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{"count": len(requests)})
}

// Queue godoc
// @Summary Admin review queue
// @Tags UnlockRequests
// @Produce json
// @Param status query string false "Comma separated statuses, ALL for every status"
// @Success 200 {object} response.Envelope
// @Router /admin/unlock-requests [get]
func (h *UnlockRequestHandler) Queue(c *gin.Context) {
	query, err := buildUnlockQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requests, err := h.workflow.ListForAdmin(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{"count": len(requests)})
}

// Decide godoc
// @Summary Approve or reject an unlock request
// @Description Repeating a decision on a resolved request returns the stored record unchanged.
// @Tags UnlockRequests
// @Accept json
// @Produce json
// @Param id path string true "Unlock request ID"
// @Param payload body dto.ResolveUnlockRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/unlock-requests/{id}/decision [post]
func (h *UnlockRequestHandler) Decide(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ResolveUnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	req.Decision = models.UnlockRequestStatus(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	record, err := h.workflow.Decide(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Export godoc
// @Summary Export the unlock request ledger
// @Tags UnlockRequests
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Router /admin/unlock-requests/export [get]
func (h *UnlockRequestHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export not configured"))
		return
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(dto.ExportFormatCSV)))))
	file, err := h.exporter.ExportLedger(c.Request.Context(), format, statuses, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func buildUnlockQuery(c *gin.Context) (dto.UnlockRequestQuery, error) {
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return dto.UnlockRequestQuery{}, err
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		return dto.UnlockRequestQuery{}, err
	}
	return dto.UnlockRequestQuery{Status: statuses, Limit: limit, Offset: offset}, nil
}
