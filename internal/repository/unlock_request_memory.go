package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

// MemoryUnlockRequestStore keeps unlock requests in process memory. Each
// session's lineage has its own mutex, so requests for different sessions
// never contend with each other.
type MemoryUnlockRequestStore struct {
	mu       sync.RWMutex
	lineages map[string]*unlockLineage
	index    map[string]string // request id -> session id
	seq      int64
}

type unlockLineage struct {
	mu       sync.Mutex
	requests []*models.UnlockRequest
}

// NewMemoryUnlockRequestStore returns an empty store.
func NewMemoryUnlockRequestStore() *MemoryUnlockRequestStore {
	return &MemoryUnlockRequestStore{
		lineages: make(map[string]*unlockLineage),
		index:    make(map[string]string),
	}
}

func (s *MemoryUnlockRequestStore) lineage(sessionID string, create bool) *unlockLineage {
	s.mu.RLock()
	l, ok := s.lineages[sessionID]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.lineages[sessionID]; !ok {
		l = &unlockLineage{}
		s.lineages[sessionID] = l
	}
	return l
}

func (s *MemoryUnlockRequestStore) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Create stores a new pending request unless one is already open for the
// session or the latest request has already unlocked it.
func (s *MemoryUnlockRequestStore) Create(ctx context.Context, req *models.UnlockRequest) error {
	if strings.TrimSpace(req.Reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	l := s.lineage(req.SessionID, true)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := admitNewRequest(l.latest()); err != nil {
		return err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.Seq = s.nextSeq()
	req.Status = models.UnlockRequestStatusPending
	req.ResolvedBy, req.ResolvedAt, req.Remarks = nil, nil, nil

	stored := *req
	l.requests = append(l.requests, &stored)

	s.mu.Lock()
	s.index[req.ID] = req.SessionID
	s.mu.Unlock()
	return nil
}

// Resolve moves a pending request to its terminal state.
func (s *MemoryUnlockRequestStore) Resolve(ctx context.Context, params models.ResolveUnlockParams) (*models.UnlockRequest, error) {
	if !params.Decision.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	s.mu.RLock()
	sessionID, ok := s.index[params.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unlock request not found")
	}

	l := s.lineage(sessionID, false)
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, stored := range l.requests {
		if stored.ID != params.ID {
			continue
		}
		if stored.Status != models.UnlockRequestStatusPending {
			existing := *stored
			return &existing, appErrors.Clone(appErrors.ErrAlreadyResolved, "unlock request already resolved")
		}
		resolver := params.ResolvedBy
		resolvedAt := params.ResolvedAt
		stored.Status = params.Decision
		stored.ResolvedBy = &resolver
		stored.ResolvedAt = &resolvedAt
		if params.Remarks != nil {
			remarks := *params.Remarks
			stored.Remarks = &remarks
		}
		updated := *stored
		return &updated, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "unlock request not found")
}

// LatestForSession returns the newest request for a session, or nil.
func (s *MemoryUnlockRequestStore) LatestForSession(ctx context.Context, sessionID string) (*models.UnlockRequest, error) {
	l := s.lineage(sessionID, false)
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	latest := l.latest()
	if latest == nil {
		return nil, nil
	}
	result := *latest
	return &result, nil
}

// ListBySession returns a session's lineage, newest first.
func (s *MemoryUnlockRequestStore) ListBySession(ctx context.Context, sessionID string) ([]models.UnlockRequest, error) {
	l := s.lineage(sessionID, false)
	if l == nil {
		return []models.UnlockRequest{}, nil
	}
	l.mu.Lock()
	result := make([]models.UnlockRequest, 0, len(l.requests))
	for _, stored := range l.requests {
		result = append(result, *stored)
	}
	l.mu.Unlock()
	sortNewestFirst(result)
	return result, nil
}

// List returns requests matching the filter, newest first.
func (s *MemoryUnlockRequestStore) List(ctx context.Context, filter models.UnlockRequestFilter) ([]models.UnlockRequest, error) {
	result := s.collect(filter)
	sortNewestFirst(result)

	limit, offset := normalisePage(filter.Limit, filter.Offset)
	if filter.Before != nil {
		offset = 0
	}
	if offset >= len(result) {
		return []models.UnlockRequest{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// CountPending counts open requests, optionally restricted to one requester.
func (s *MemoryUnlockRequestStore) CountPending(ctx context.Context, requestedBy string) (int, error) {
	return len(s.collect(models.UnlockRequestFilter{
		Status:      []models.UnlockRequestStatus{models.UnlockRequestStatusPending},
		RequestedBy: requestedBy,
	})), nil
}

func (s *MemoryUnlockRequestStore) collect(filter models.UnlockRequestFilter) []models.UnlockRequest {
	s.mu.RLock()
	lineages := make([]*unlockLineage, 0, len(s.lineages))
	for sessionID, l := range s.lineages {
		if filter.SessionID != "" && sessionID != filter.SessionID {
			continue
		}
		lineages = append(lineages, l)
	}
	s.mu.RUnlock()

	result := make([]models.UnlockRequest, 0)
	for _, l := range lineages {
		l.mu.Lock()
		for _, stored := range l.requests {
			if matchesFilter(stored, filter) {
				result = append(result, *stored)
			}
		}
		l.mu.Unlock()
	}
	return result
}

func matchesFilter(req *models.UnlockRequest, filter models.UnlockRequestFilter) bool {
	if filter.RequestedBy != "" && req.RequestedBy != filter.RequestedBy {
		return false
	}
	if filter.ResolvedBy != "" && (req.ResolvedBy == nil || *req.ResolvedBy != filter.ResolvedBy) {
		return false
	}
	if filter.Before != nil && !req.Precedes(filter.Before) {
		return false
	}
	if len(filter.Status) == 0 {
		return true
	}
	for _, status := range filter.Status {
		if req.Status == status {
			return true
		}
	}
	return false
}

// latest must be called with l.mu held.
func (l *unlockLineage) latest() *models.UnlockRequest {
	var latest *models.UnlockRequest
	for _, stored := range l.requests {
		if stored.Newer(latest) {
			latest = stored
		}
	}
	return latest
}

func sortNewestFirst(requests []models.UnlockRequest) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Newer(&requests[j])
	})
}
