package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
)

var sessionColumnNames = []string{"id", "course_id", "course_name", "teacher_id", "session_date", "starts_at", "ends_at", "room", "class_name", "section"}

func TestSessionRepositoryGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(sqlx.NewDb(db, "sqlmock"))
	day := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sessions WHERE id = $1")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow("sess-1", "course-1", "Mathematics", "teacher-1", day, day.Add(9*time.Hour), day.Add(10*time.Hour), "R101", "X-A", "A"))

	session, err := repo.GetByID(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", session.CourseName)
	assert.True(t, session.StartsAt.Before(session.EndsAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryGetByIDInvalidWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(sqlx.NewDb(db, "sqlmock"))
	day := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sessions WHERE id = $1")).
		WithArgs("sess-bad").
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow("sess-bad", "course-1", "Mathematics", "teacher-1", day, day.Add(10*time.Hour), day.Add(10*time.Hour), "R101", "X-A", "A"))

	_, err = repo.GetByID(context.Background(), "sess-bad")
	assert.True(t, errors.Is(err, models.ErrInvalidSessionWindow))
}

func TestSessionRepositoryGetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sessions WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(sessionColumnNames))

	_, err = NewSessionRepository(sqlx.NewDb(db, "sqlmock")).GetByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSessionRepositoryListSkipsMalformedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teacher_id = $1 AND session_date = $2 ORDER BY starts_at ASC, id ASC")).
		WithArgs("teacher-1", "2024-08-12").
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow("sess-1", "course-1", "Mathematics", "teacher-1", day, day.Add(9*time.Hour), day.Add(10*time.Hour), "R101", "X-A", "A").
			AddRow("sess-2", "course-2", "Physics", "teacher-1", day, day.Add(12*time.Hour), day.Add(11*time.Hour), "R102", "X-A", "A"))

	sessions, err := NewSessionRepository(sqlx.NewDb(db, "sqlmock")).List(context.Background(), models.SessionFilter{TeacherID: "teacher-1", Date: day})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, "attendance:")
	var dest map[string]string
	err := repo.Get(context.Background(), "k", &dest)
	require.Error(t, err)
	assert.NoError(t, repo.Set(context.Background(), "k", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
	assert.Error(t, repo.PingContext(context.Background()))
	assert.NoError(t, repo.Close())
}
