package repository

import (
	"context"

	"github.com/hackportal/portal/internal/domain"
)

// EventRepository defines the interface for event data access.
// Events are the tenants themselves and are not event-scoped.
type EventRepository interface {
	// Create creates a new event
	Create(ctx context.Context, event *domain.Event) error
	// GetByID retrieves an event by ID, nil when absent
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// GetBySlug retrieves an event by slug, nil when absent
	GetBySlug(ctx context.Context, slug string) (*domain.Event, error)
	// List retrieves events with pagination and filters
	List(ctx context.Context, page, limit int, isActive *bool, search string) ([]*domain.Event, int, error)
	// ListActive returns every event flagged active
	ListActive(ctx context.Context) ([]*domain.Event, error)
	// Activate makes id the only active event
	Activate(ctx context.Context, id string) error
	// ExistsBySlug checks if an event exists with the given slug
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
}
