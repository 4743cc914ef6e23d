package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hackportal/portal/internal/domain"
)

// MemoryEventRepository implements EventRepository in process
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
}

// NewMemoryEventRepository creates an empty MemoryEventRepository
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string]*domain.Event)}
}

func copyEvent(e *domain.Event) *domain.Event {
	c := *e
	return &c
}

// Create stores a new event, deactivating others when it is active
func (r *MemoryEventRepository) Create(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.ID]; exists {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	for _, e := range r.events {
		if e.Slug == event.Slug {
			return fmt.Errorf("event slug %q already exists", event.Slug)
		}
	}
	if event.IsActive {
		r.deactivateAllLocked(time.Now().UTC())
	}
	r.events[event.ID] = copyEvent(event)
	return nil
}

// GetByID returns the event or nil
func (r *MemoryEventRepository) GetByID(_ context.Context, id string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.events[id]; ok {
		return copyEvent(e), nil
	}
	return nil, nil
}

// GetBySlug returns the event or nil
func (r *MemoryEventRepository) GetBySlug(_ context.Context, slug string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if e.Slug == slug {
			return copyEvent(e), nil
		}
	}
	return nil, nil
}

// List filters, sorts newest first and paginates
func (r *MemoryEventRepository) List(_ context.Context, page, limit int, isActive *bool, search string) ([]*domain.Event, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search = strings.ToLower(search)
	matched := make([]*domain.Event, 0, len(r.events))
	for _, e := range r.events {
		if isActive != nil && e.IsActive != *isActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Name), search) && !strings.Contains(strings.ToLower(e.Slug), search) {
			continue
		}
		matched = append(matched, copyEvent(e))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartsAt.Equal(matched[j].StartsAt) {
			return matched[i].StartsAt.After(matched[j].StartsAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if limit <= 0 {
		return matched, total, nil
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Event{}, total, nil
	}
	end := min(start+limit, total)
	return matched[start:end], total, nil
}

// ListActive returns active events
func (r *MemoryEventRepository) ListActive(_ context.Context) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Event, 0, 1)
	for _, e := range r.events {
		if e.IsActive {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Activate makes id the only active event
func (r *MemoryEventRepository) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	now := time.Now().UTC()
	r.deactivateAllLocked(now)
	target.IsActive = true
	target.UpdatedAt = now
	return nil
}

// ExistsBySlug checks if an event exists with the given slug
func (r *MemoryEventRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	e, err := r.GetBySlug(ctx, slug)
	return e != nil, err
}

// Put stores an event as-is, bypassing the single-active rule. Used to
// seed fixtures, including deliberately inconsistent ones.
func (r *MemoryEventRepository) Put(event *domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = copyEvent(event)
}

func (r *MemoryEventRepository) deactivateAllLocked(now time.Time) {
	for _, e := range r.events {
		if e.IsActive {
			e.IsActive = false
			e.UpdatedAt = now
		}
	}
}
