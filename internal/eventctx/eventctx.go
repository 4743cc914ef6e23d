// Package eventctx carries the event a unit of work is operating on.
//
// Each request or connection gets its own Slot, created when the work
// starts and cleared when it ends. Slots are never shared between
// concurrent units of work.
package eventctx

import (
	"context"
	"sync"

	"github.com/hackportal/portal/internal/domain"
)

type slotKey struct{}

// Slot holds the current event for one unit of work
type Slot struct {
	mu    sync.RWMutex
	event *domain.Event
}

// New attaches a fresh, empty slot to ctx
func New(ctx context.Context) (context.Context, *Slot) {
	slot := &Slot{}
	return context.WithValue(ctx, slotKey{}, slot), slot
}

// FromContext returns the slot attached to ctx, if any
func FromContext(ctx context.Context) (*Slot, bool) {
	slot, ok := ctx.Value(slotKey{}).(*Slot)
	return slot, ok && slot != nil
}

// Event returns the event currently set on ctx's slot
func Event(ctx context.Context) (*domain.Event, bool) {
	slot, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return slot.Get()
}

// Set records the current event; setting again replaces it
func (s *Slot) Set(event *domain.Event) {
	s.mu.Lock()
	s.event = event
	s.mu.Unlock()
}

// Get returns the current event, or false when none is set
func (s *Slot) Get() (*domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.event, s.event != nil
}

// Clear empties the slot. Safe to call more than once.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.event = nil
	s.mu.Unlock()
}
