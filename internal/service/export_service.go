package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-lock/internal/dto"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	"github.com/noah-isme/sma-attendance-lock/pkg/clock"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
	"github.com/noah-isme/sma-attendance-lock/pkg/export"
)

const exportPageSize = 200

type unlockRequestLister interface {
	List(ctx context.Context, filter models.UnlockRequestFilter) ([]models.UnlockRequest, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportService renders the unlock request ledger for administrators.
type ExportService struct {
	requests unlockRequestLister
	audit    auditLogger
	csv      datasetRenderer
	pdf      datasetRenderer
	clock    clock.Clock
	logger   *zap.Logger
}

// NewExportService constructs the service. Nil renderers fall back to the
// package defaults.
func NewExportService(requests unlockRequestLister, audit auditLogger, c clock.Clock, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if c == nil {
		c = &clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{requests: requests, audit: audit, csv: csv, pdf: pdf, clock: c, logger: logger}
}

// ExportLedger renders every request matching statuses (all when empty).
func (s *ExportService) ExportLedger(ctx context.Context, format dto.ExportFormat, statuses []models.UnlockRequestStatus, actorID string) (*dto.ExportFile, error) {
	var renderer datasetRenderer
	switch format {
	case dto.ExportFormatCSV, "":
		renderer = s.csv
	case dto.ExportFormatPDF:
		renderer = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	requests, err := s.collect(ctx, statuses)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	dataset := export.Dataset{
		Title:    "Unlock Request Ledger",
		Subtitle: fmt.Sprintf("Generated %s, %d records", now.Format(time.RFC3339), len(requests)),
		Headers:  []string{"Request", "Session", "Requested By", "Type", "Status", "Requested At", "Resolved By", "Resolved At", "Reason", "Remarks"},
		Rows:     make([][]string, 0, len(requests)),
	}
	for _, r := range requests {
		dataset.Rows = append(dataset.Rows, []string{
			r.ID,
			r.SessionID,
			r.RequestedBy,
			string(r.RequestType),
			string(r.Status),
			r.RequestedAt.Format(time.RFC3339),
			deref(r.ResolvedBy),
			formatOptionalTime(r.ResolvedAt),
			r.Reason,
			deref(r.Remarks),
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	file := &dto.ExportFile{
		Filename:    fmt.Sprintf("unlock_requests_%s.%s", now.UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}
	s.logger.Info("unlock ledger exported", zap.String("format", renderer.Extension()), zap.Int("records", len(requests)), zap.String("actor", actorID))
	if s.audit != nil {
		resource := strings.ToLower(renderer.Extension())
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &actorID,
			Action:    models.AuditActionUnlockExport,
			Resource:  "unlock_request",
			NewValues: []byte(fmt.Sprintf(`{"format":%q,"records":%d}`, resource, len(requests))),
			IPAddress: "system",
			UserAgent: "export-service",
		}); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return file, nil
}

// collect walks the ledger newest first with a keyset cursor so rows created
// while the export runs cannot shift a page boundary.
func (s *ExportService) collect(ctx context.Context, statuses []models.UnlockRequestStatus) ([]models.UnlockRequest, error) {
	var all []models.UnlockRequest
	var cursor *models.UnlockCursor
	for {
		page, err := s.requests.List(ctx, models.UnlockRequestFilter{Status: statuses, Before: cursor, Limit: exportPageSize})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unlock requests")
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
		cursor = page[len(page)-1].Cursor()
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
