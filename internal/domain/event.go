package domain

import (
	"errors"
	"time"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrNoActiveEvent    = errors.New("no active event")
	ErrManyActiveEvents = errors.New("more than one active event")
	ErrInvalidEvent     = errors.New("invalid event")
)

// Event is one hackathon instance and the unit of data isolation.
// At most one event is active at a time; the active event is the
// fallback tenant for requests that carry no explicit event.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the invariants an event must satisfy before it is stored
func (e *Event) Validate() error {
	if e.Name == "" {
		return errors.Join(ErrInvalidEvent, errors.New("name is required"))
	}
	if e.Slug == "" {
		return errors.Join(ErrInvalidEvent, errors.New("slug is required"))
	}
	if !e.StartsAt.IsZero() && !e.EndsAt.IsZero() && e.EndsAt.Before(e.StartsAt) {
		return errors.Join(ErrInvalidEvent, errors.New("ends_at is before starts_at"))
	}
	return nil
}

// IsRunning reports whether now falls inside the event window
func (e *Event) IsRunning(now time.Time) bool {
	if e.StartsAt.IsZero() || e.EndsAt.IsZero() {
		return false
	}
	return !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}
