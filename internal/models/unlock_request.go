package models

import "time"

// UnlockRequestType enumerates why a teacher needs a closed session reopened.
type UnlockRequestType string

const (
	UnlockRequestTypeLateMarking          UnlockRequestType = "LATE_MARKING"
	UnlockRequestTypeAttendanceCorrection UnlockRequestType = "ATTENDANCE_CORRECTION"
	UnlockRequestTypeOther                UnlockRequestType = "OTHER"
)

// Valid reports whether t is a supported request type.
func (t UnlockRequestType) Valid() bool {
	switch t {
	case UnlockRequestTypeLateMarking, UnlockRequestTypeAttendanceCorrection, UnlockRequestTypeOther:
		return true
	}
	return false
}

// UnlockRequestStatus captures the resolution state of an unlock request.
type UnlockRequestStatus string

const (
	UnlockRequestStatusPending  UnlockRequestStatus = "PENDING"
	UnlockRequestStatusApproved UnlockRequestStatus = "APPROVED"
	UnlockRequestStatusRejected UnlockRequestStatus = "REJECTED"
)

// Terminal reports whether the status is a final decision.
func (s UnlockRequestStatus) Terminal() bool {
	return s == UnlockRequestStatusApproved || s == UnlockRequestStatusRejected
}

// UnlockRequest records a teacher's ask to edit attendance after a session closed.
// Seq is assigned by the store and breaks ties between equal RequestedAt values.
type UnlockRequest struct {
	ID          string              `db:"id" json:"id"`
	Seq         int64               `db:"seq" json:"seq"`
	SessionID   string              `db:"session_id" json:"sessionId"`
	RequestedBy string              `db:"requested_by" json:"requestedBy"`
	Reason      string              `db:"reason" json:"reason"`
	RequestType UnlockRequestType   `db:"request_type" json:"requestType"`
	Status      UnlockRequestStatus `db:"status" json:"status"`
	RequestedAt time.Time           `db:"requested_at" json:"requestedAt"`
	ResolvedBy  *string             `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time          `db:"resolved_at" json:"resolvedAt,omitempty"`
	Remarks     *string             `db:"remarks" json:"remarks,omitempty"`
}

// Newer reports whether r sorts after other in a session's request lineage.
func (r *UnlockRequest) Newer(other *UnlockRequest) bool {
	if other == nil {
		return true
	}
	if !r.RequestedAt.Equal(other.RequestedAt) {
		return r.RequestedAt.After(other.RequestedAt)
	}
	return r.Seq > other.Seq
}

// UnlockCursor marks a position in the newest-first request ordering.
type UnlockCursor struct {
	RequestedAt time.Time
	Seq         int64
}

// Cursor returns the position of r in the newest-first ordering.
func (r *UnlockRequest) Cursor() *UnlockCursor {
	return &UnlockCursor{RequestedAt: r.RequestedAt, Seq: r.Seq}
}

// Precedes reports whether r sorts strictly before the cursor, i.e. is
// older than the row it was taken from.
func (r *UnlockRequest) Precedes(c *UnlockCursor) bool {
	if !r.RequestedAt.Equal(c.RequestedAt) {
		return r.RequestedAt.Before(c.RequestedAt)
	}
	return r.Seq < c.Seq
}

// UnlockRequestFilter constrains listing queries. When Before is set, only
// rows older than the cursor are returned and Offset is ignored.
type UnlockRequestFilter struct {
	Status      []UnlockRequestStatus
	SessionID   string
	RequestedBy string
	ResolvedBy  string
	Before      *UnlockCursor
	Limit       int
	Offset      int
}

// ResolveUnlockParams groups the columns written by a resolution.
type ResolveUnlockParams struct {
	ID         string
	Decision   UnlockRequestStatus
	ResolvedBy string
	ResolvedAt time.Time
	Remarks    *string
}
