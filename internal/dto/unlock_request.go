package dto

import (
	"time"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
)

// CreateUnlockRequest is the teacher's payload for reopening a closed session.
type CreateUnlockRequest struct {
	SessionID   string                   `json:"sessionId" validate:"required,max=64"`
	Reason      string                   `json:"reason" validate:"required"`
	RequestType models.UnlockRequestType `json:"requestType" validate:"omitempty,oneof=LATE_MARKING ATTENDANCE_CORRECTION OTHER"`
}

// ResolveUnlockRequest captures an administrator's decision and remarks.
type ResolveUnlockRequest struct {
	Decision models.UnlockRequestStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Remarks  string                     `json:"remarks" validate:"max=1000"`
}

// UnlockRequestQuery mirrors supported listing filters.
type UnlockRequestQuery struct {
	Status []models.UnlockRequestStatus
	Limit  int
	Offset int
}

// EditCheckResponse tells the attendance screen which affordances to show.
type EditCheckResponse struct {
	SessionID string                 `json:"sessionId"`
	Status    models.EffectiveStatus `json:"status"`
	CanMark   bool                   `json:"canMark"`
	CanEdit   bool                   `json:"canEdit"`
}

// TeacherDashboardSession is one row of the teacher's day view.
type TeacherDashboardSession struct {
	Session models.Session             `json:"session"`
	Status  models.EffectiveStatusView `json:"status"`
}

// TeacherDashboardResponse summarises a teacher's sessions for a day.
type TeacherDashboardResponse struct {
	Date                  string                    `json:"date"`
	TotalSessions         int                       `json:"totalSessions"`
	CompletedSessions     int                       `json:"completedSessions"`
	PendingUnlockRequests int                       `json:"pendingUnlockRequests"`
	Sessions              []TeacherDashboardSession `json:"sessions"`
	GeneratedAt           time.Time                 `json:"generatedAt"`
}

// ExportFormat selects the ledger export renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered ledger export.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
