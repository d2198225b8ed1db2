package models

import (
	"errors"
	"time"
)

// BaseStatus is the lifecycle state of a session derived purely from time.
type BaseStatus string

const (
	BaseStatusUpcoming  BaseStatus = "UPCOMING"
	BaseStatusOngoing   BaseStatus = "ONGOING"
	BaseStatusCompleted BaseStatus = "COMPLETED"
)

// ErrInvalidSessionWindow is returned for sessions whose start is not before their end.
var ErrInvalidSessionWindow = errors.New("session start must be before end")

// Session is one materialised occurrence of a scheduled class.
type Session struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"courseId"`
	CourseName  string    `db:"course_name" json:"courseName"`
	TeacherID   string    `db:"teacher_id" json:"teacherId"`
	SessionDate time.Time `db:"session_date" json:"sessionDate"`
	StartsAt    time.Time `db:"starts_at" json:"startsAt"`
	EndsAt      time.Time `db:"ends_at" json:"endsAt"`
	Room        string    `db:"room" json:"room"`
	ClassName   string    `db:"class_name" json:"className"`
	Section     string    `db:"section" json:"section"`
}

// SessionWindow carries the scheduling attributes used to build a Session.
type SessionWindow struct {
	ID         string
	CourseID   string
	CourseName string
	TeacherID  string
	Date       time.Time
	Start      time.Duration
	End        time.Duration
	Room       string
	ClassName  string
	Section    string
}

// NewSession materialises a session on a calendar date in loc, with start and
// end given as offsets from midnight.
func NewSession(w SessionWindow, loc *time.Location) (*Session, error) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := w.Date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	s := &Session{
		ID:          w.ID,
		CourseID:    w.CourseID,
		CourseName:  w.CourseName,
		TeacherID:   w.TeacherID,
		SessionDate: midnight,
		StartsAt:    midnight.Add(w.Start),
		EndsAt:      midnight.Add(w.End),
		Room:        w.Room,
		ClassName:   w.ClassName,
		Section:     w.Section,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the session window invariant.
func (s *Session) Validate() error {
	if s == nil || !s.StartsAt.Before(s.EndsAt) {
		return ErrInvalidSessionWindow
	}
	return nil
}

// SessionFilter constrains session listing queries.
type SessionFilter struct {
	TeacherID string
	Date      time.Time
}
