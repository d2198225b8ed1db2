package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

var unlockColumns = []string{"id", "seq", "session_id", "requested_by", "reason", "request_type", "status", "requested_at", "resolved_by", "resolved_at", "remarks"}

func newUnlockRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func newPendingRequest() *models.UnlockRequest {
	return &models.UnlockRequest{
		SessionID:   "sess-1",
		RequestedBy: "teacher-1",
		Reason:      "Network issue",
		RequestType: models.UnlockRequestTypeLateMarking,
		RequestedAt: time.Date(2024, 8, 12, 10, 30, 0, 0, time.UTC),
	}
}

func TestUnlockRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO unlock_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))
	mock.ExpectCommit()

	req := newPendingRequest()
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, int64(7), req.Seq)
	assert.Equal(t, models.UnlockRequestStatusPending, req.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryCreateConflictWhenPendingExists(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-1", int64(1), "sess-1", "teacher-1", "first", "LATE_MARKING", "PENDING", time.Now(), nil, nil, nil))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newPendingRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryCreateIneligibleWhenLatestApproved(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	resolvedAt := time.Date(2024, 8, 12, 11, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-1", int64(1), "sess-1", "teacher-1", "first", "LATE_MARKING", "APPROVED", resolvedAt.Add(-time.Hour), "admin-1", resolvedAt, nil))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newPendingRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrIneligibleState))
	assert.False(t, errors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryCreateAfterRejection(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	resolvedAt := time.Date(2024, 8, 12, 11, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-1", int64(1), "sess-1", "teacher-1", "first", "LATE_MARKING", "REJECTED", resolvedAt.Add(-time.Hour), "admin-1", resolvedAt, nil))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO unlock_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(2)))
	mock.ExpectCommit()

	req := newPendingRequest()
	require.NoError(t, repo.Create(context.Background(), req))
	assert.Equal(t, int64(2), req.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WillReturnRows(sqlmock.NewRows(unlockColumns))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO unlock_requests")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newPendingRequest())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryCreateRejectsEmptyReason(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	req := newPendingRequest()
	req.Reason = "   "
	err := NewUnlockRequestRepository(db).Create(context.Background(), req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryResolve(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	resolvedAt := time.Date(2024, 8, 12, 12, 0, 0, 0, time.UTC)
	remarks := "Confirmed outage"
	rows := sqlmock.NewRows(unlockColumns).
		AddRow("req-1", int64(1), "sess-1", "teacher-1", "Network issue", "LATE_MARKING", "APPROVED", resolvedAt.Add(-time.Hour), "admin-1", resolvedAt, remarks)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE unlock_requests")).
		WithArgs("req-1", "APPROVED", "admin-1", resolvedAt, remarks, "PENDING").
		WillReturnRows(rows)

	updated, err := repo.Resolve(context.Background(), models.ResolveUnlockParams{
		ID:         "req-1",
		Decision:   models.UnlockRequestStatusApproved,
		ResolvedBy: "admin-1",
		ResolvedAt: resolvedAt,
		Remarks:    &remarks,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UnlockRequestStatusApproved, updated.Status)
	require.NotNil(t, updated.ResolvedBy)
	assert.Equal(t, "admin-1", *updated.ResolvedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryResolveAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	resolvedAt := time.Date(2024, 8, 12, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE unlock_requests")).
		WillReturnRows(sqlmock.NewRows(unlockColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, seq, session_id")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-1", int64(1), "sess-1", "teacher-1", "Network issue", "LATE_MARKING", "REJECTED", resolvedAt.Add(-time.Hour), "admin-1", resolvedAt, nil))

	existing, err := repo.Resolve(context.Background(), models.ResolveUnlockParams{
		ID:         "req-1",
		Decision:   models.UnlockRequestStatusApproved,
		ResolvedBy: "admin-2",
		ResolvedAt: resolvedAt.Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyResolved))
	require.NotNil(t, existing)
	assert.Equal(t, models.UnlockRequestStatusRejected, existing.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryResolveUnknown(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE unlock_requests")).
		WillReturnRows(sqlmock.NewRows(unlockColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, seq, session_id")).
		WillReturnRows(sqlmock.NewRows(unlockColumns))

	existing, err := repo.Resolve(context.Background(), models.ResolveUnlockParams{
		ID:       "missing",
		Decision: models.UnlockRequestStatusRejected,
	})
	assert.Nil(t, existing)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryResolveRejectsPendingDecision(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	_, err := NewUnlockRequestRepository(db).Resolve(context.Background(), models.ResolveUnlockParams{
		ID:       "req-1",
		Decision: models.UnlockRequestStatusPending,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryLatestForSession(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-2", int64(2), "sess-1", "teacher-1", "second", "LATE_MARKING", "PENDING", time.Now(), nil, nil, nil))

	latest, err := repo.LatestForSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "req-2", latest.ID)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, seq DESC")).
		WithArgs("sess-2").
		WillReturnRows(sqlmock.NewRows(unlockColumns))

	latest, err = repo.LatestForSession(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.Nil(t, latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryListBySession(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	first := time.Date(2024, 8, 12, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-2", int64(2), "sess-1", "teacher-1", "second", "LATE_MARKING", "PENDING", first.Add(time.Hour), nil, nil, nil).
			AddRow("req-1", int64(1), "sess-1", "teacher-1", "first", "LATE_MARKING", "REJECTED", first, "admin-1", first.Add(30*time.Minute), nil))

	history, err := repo.ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "req-2", history[0].ID)
	assert.Equal(t, models.UnlockRequestStatusRejected, history[1].Status)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1")).
		WithArgs("sess-2").
		WillReturnRows(sqlmock.NewRows(unlockColumns))

	history, err = repo.ListBySession(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ($1) AND requested_by = $2")).
		WithArgs("PENDING", "teacher-1").
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-1", int64(1), "sess-1", "teacher-1", "late", "LATE_MARKING", "PENDING", time.Now(), nil, nil, nil))

	list, err := repo.List(context.Background(), models.UnlockRequestFilter{
		Status:      []models.UnlockRequestStatus{models.UnlockRequestStatusPending},
		RequestedBy: "teacher-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryListBeforeCursor(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	at := time.Date(2024, 8, 12, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ($1) AND (requested_at, seq) < ($2, $3) ORDER BY requested_at DESC, seq DESC LIMIT 200")).
		WithArgs("PENDING", at, int64(9)).
		WillReturnRows(sqlmock.NewRows(unlockColumns).
			AddRow("req-8", int64(8), "sess-8", "teacher-1", "late", "LATE_MARKING", "PENDING", at.Add(-time.Minute), nil, nil, nil))

	list, err := repo.List(context.Background(), models.UnlockRequestFilter{
		Status: []models.UnlockRequestStatus{models.UnlockRequestStatusPending},
		Before: &models.UnlockCursor{RequestedAt: at, Seq: 9},
		Limit:  200,
		Offset: 400,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "req-8", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRequestRepositoryCountPending(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM unlock_requests WHERE status IN ($1) AND requested_by = $2")).
		WithArgs("PENDING", "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountPending(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
