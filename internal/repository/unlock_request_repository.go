package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

const unlockRequestColumns = `id, seq, session_id, requested_by, reason, request_type, status,
       requested_at, resolved_by, resolved_at, remarks`

// pqUniqueViolation is the SQLSTATE raised by the partial unique index on pending requests.
const pqUniqueViolation = "23505"

// UnlockRequestRepository persists unlock requests in PostgreSQL. The
// one-pending-per-session rule is enforced by a transaction-scoped advisory
// lock on the session id, backed by a partial unique index.
type UnlockRequestRepository struct {
	db *sqlx.DB
}

// NewUnlockRequestRepository constructs the repository.
func NewUnlockRequestRepository(db *sqlx.DB) *UnlockRequestRepository {
	return &UnlockRequestRepository{db: db}
}

// Create inserts a new pending request, assigning its id and sequence number.
func (r *UnlockRequestRepository) Create(ctx context.Context, req *models.UnlockRequest) error {
	if strings.TrimSpace(req.Reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.Status = models.UnlockRequestStatusPending
	req.ResolvedBy, req.ResolvedAt, req.Remarks = nil, nil, nil

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unlock request tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.SessionID); err != nil {
		return fmt.Errorf("lock session lineage: %w", err)
	}

	var latest models.UnlockRequest
	err = tx.GetContext(ctx, &latest, `SELECT `+unlockRequestColumns+` FROM unlock_requests
	WHERE session_id = $1
	ORDER BY requested_at DESC, seq DESC
	LIMIT 1`, req.SessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err == nil:
		err = admitNewRequest(&latest)
	default:
		return fmt.Errorf("load latest unlock request: %w", err)
	}
	if err != nil {
		return err
	}

	const insert = `INSERT INTO unlock_requests
	(id, session_id, requested_by, reason, request_type, status, requested_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING seq`
	if err := tx.GetContext(ctx, &req.Seq, insert,
		req.ID, req.SessionID, req.RequestedBy, req.Reason, req.RequestType, req.Status, req.RequestedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return pendingConflict()
		}
		return fmt.Errorf("create unlock request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unlock request: %w", err)
	}
	return nil
}

// Resolve moves a pending request to its terminal state. A request that is
// already terminal is returned unchanged together with ErrAlreadyResolved.
func (r *UnlockRequestRepository) Resolve(ctx context.Context, params models.ResolveUnlockParams) (*models.UnlockRequest, error) {
	if !params.Decision.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	query := `UPDATE unlock_requests
	SET status = $2, resolved_by = $3, resolved_at = $4, remarks = $5
	WHERE id = $1 AND status = $6
	RETURNING ` + unlockRequestColumns
	var updated models.UnlockRequest
	err := r.db.GetContext(ctx, &updated, query,
		params.ID, params.Decision, params.ResolvedBy, params.ResolvedAt, params.Remarks, models.UnlockRequestStatusPending)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve unlock request: %w", err)
	}

	existing, err := r.GetByID(ctx, params.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unlock request not found")
		}
		return nil, err
	}
	return existing, appErrors.Clone(appErrors.ErrAlreadyResolved, "unlock request already resolved")
}

// GetByID fetches a request by identifier.
func (r *UnlockRequestRepository) GetByID(ctx context.Context, id string) (*models.UnlockRequest, error) {
	query := `SELECT ` + unlockRequestColumns + ` FROM unlock_requests WHERE id = $1`
	var req models.UnlockRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// LatestForSession returns the most recently created request for a session, or nil.
func (r *UnlockRequestRepository) LatestForSession(ctx context.Context, sessionID string) (*models.UnlockRequest, error) {
	query := `SELECT ` + unlockRequestColumns + ` FROM unlock_requests
	WHERE session_id = $1
	ORDER BY requested_at DESC, seq DESC
	LIMIT 1`
	var req models.UnlockRequest
	if err := r.db.GetContext(ctx, &req, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest unlock request: %w", err)
	}
	return &req, nil
}

// ListBySession returns the full request lineage of a session, newest first.
func (r *UnlockRequestRepository) ListBySession(ctx context.Context, sessionID string) ([]models.UnlockRequest, error) {
	query := `SELECT ` + unlockRequestColumns + ` FROM unlock_requests
	WHERE session_id = $1
	ORDER BY requested_at DESC, seq DESC`
	requests := []models.UnlockRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session unlock requests: %w", err)
	}
	return requests, nil
}

// List returns requests matching the filter (sorted latest first).
func (r *UnlockRequestRepository) List(ctx context.Context, filter models.UnlockRequestFilter) ([]models.UnlockRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + unlockRequestColumns + ` FROM unlock_requests`)

	where, args := unlockFilterClause(filter)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY requested_at DESC, seq DESC")

	limit, offset := normalisePage(filter.Limit, filter.Offset)
	if filter.Before != nil {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	} else {
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	}

	requests := []models.UnlockRequest{}
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list unlock requests: %w", err)
	}
	return requests, nil
}

// CountPending counts open requests, optionally restricted to one requester.
func (r *UnlockRequestRepository) CountPending(ctx context.Context, requestedBy string) (int, error) {
	where, args := unlockFilterClause(models.UnlockRequestFilter{
		Status:      []models.UnlockRequestStatus{models.UnlockRequestStatusPending},
		RequestedBy: requestedBy,
	})
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM unlock_requests`+where, args...); err != nil {
		return 0, fmt.Errorf("count pending unlock requests: %w", err)
	}
	return count, nil
}

func unlockFilterClause(filter models.UnlockRequestFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.ResolvedBy != "" {
		args = append(args, filter.ResolvedBy)
		conditions = append(conditions, fmt.Sprintf("resolved_by = $%d", len(args)))
	}
	if filter.Before != nil {
		args = append(args, filter.Before.RequestedAt, filter.Before.Seq)
		conditions = append(conditions, fmt.Sprintf("(requested_at, seq) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func normalisePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// admitNewRequest decides whether a session whose newest request is latest
// may receive another one. A pending request blocks with CONFLICT and an
// approved one with INELIGIBLE_STATE; rejected or absent history admits.
func admitNewRequest(latest *models.UnlockRequest) error {
	if latest == nil {
		return nil
	}
	switch latest.Status {
	case models.UnlockRequestStatusPending:
		return pendingConflict()
	case models.UnlockRequestStatusApproved:
		return appErrors.Clone(appErrors.ErrIneligibleState, "session is already unlocked")
	}
	return nil
}

func pendingConflict() error {
	return appErrors.Clone(appErrors.ErrConflict, "a request is already awaiting review")
}
