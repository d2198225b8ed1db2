package models

import "time"

// EffectiveStatus is the status callers observe after overlaying the unlock
// workflow on the time-derived base status.
type EffectiveStatus string

const (
	EffectiveStatusUpcoming  EffectiveStatus = "UPCOMING"
	EffectiveStatusOngoing   EffectiveStatus = "ONGOING"
	EffectiveStatusCompleted EffectiveStatus = "COMPLETED"
	EffectiveStatusPending   EffectiveStatus = "PENDING"
	EffectiveStatusUnlocked  EffectiveStatus = "UNLOCKED"
	EffectiveStatusRejected  EffectiveStatus = "REJECTED"
)

// EffectiveStatusView is the resolved status together with the inputs and
// affordances derived from it. A rejected request never changes Status; it is
// reported through Annotation only.
type EffectiveStatusView struct {
	SessionID        string          `json:"sessionId"`
	Status           EffectiveStatus `json:"status"`
	BaseStatus       BaseStatus      `json:"baseStatus"`
	Annotation       EffectiveStatus `json:"annotation,omitempty"`
	LatestRequest    *UnlockRequest  `json:"latestRequest,omitempty"`
	CanMark          bool            `json:"canMark"`
	CanEdit          bool            `json:"canEdit"`
	CanRequestUnlock bool            `json:"canRequestUnlock"`
	EvaluatedAt      time.Time       `json:"evaluatedAt"`
}
