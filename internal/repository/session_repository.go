package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
)

const sessionColumns = `id, course_id, course_name, teacher_id, session_date, starts_at, ends_at, room, class_name, section`

// SessionRepository reads materialised class sessions. Sessions are written
// by the scheduling system and treated as immutable here.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByID fetches a session. A row violating the window invariant is reported
// as models.ErrInvalidSessionWindow.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &session, nil
}

// List returns sessions for a teacher and/or date ordered by start time.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + sessionColumns + ` FROM class_sessions`)

	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if !filter.Date.IsZero() {
		args = append(args, filter.Date.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("session_date = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY starts_at ASC, id ASC")

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	valid := sessions[:0]
	for _, s := range sessions {
		if s.Validate() == nil {
			valid = append(valid, s)
		}
	}
	return valid, nil
}
