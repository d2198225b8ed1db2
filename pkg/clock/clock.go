// Package clock supplies the current instant to status derivation so it can
// be substituted with a fixed instant in tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in the institution's configured location.
type System struct {
	Location *time.Location
}

// NewSystem returns a wall clock bound to the named IANA location.
// An empty name selects UTC.
func NewSystem(name string) (*System, error) {
	if name == "" {
		return &System{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &System{Location: loc}, nil
}

// Now implements Clock.
func (s *System) Now() time.Time {
	if s == nil || s.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(s.Location)
}

// Fixed always reports the same instant until moved with Set or Advance.
type Fixed struct {
	mu sync.RWMutex
	at time.Time
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{at: t}
}

// Now implements Clock.
func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.at
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.at = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}
