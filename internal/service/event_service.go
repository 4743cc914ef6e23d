package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/repository"
)

var (
	ErrEventAlreadyExists = errors.New("event with this slug already exists")
	ErrInvalidSlug        = errors.New("invalid slug format")
)

// EventService defines the interface for event administration. It works
// across events and is only reachable from admin routes and the CLI.
type EventService interface {
	// Create creates a new event
	Create(ctx context.Context, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id string) (*dto.EventResponse, error)
	// List retrieves events with pagination and filters
	List(ctx context.Context, query *dto.ListEventsQuery) (*dto.ListEventsResponse, error)
	// Activate makes the event the active fallback
	Activate(ctx context.Context, id string) (*dto.EventResponse, error)
}

type eventService struct {
	eventRepo repository.EventRepository
}

// NewEventService creates a new EventService
func NewEventService(eventRepo repository.EventRepository) EventService {
	return &eventService{eventRepo: eventRepo}
}

// Create creates a new event
func (s *eventService) Create(ctx context.Context, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	if valid, errMsg := req.ValidateSlug(); !valid {
		return nil, errors.Join(ErrInvalidSlug, errors.New(errMsg))
	}

	exists, err := s.eventRepo.ExistsBySlug(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEventAlreadyExists
	}

	now := time.Now().UTC()
	event := &domain.Event{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Slug:      req.Slug,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.EndsAt.UTC(),
		IsActive:  req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}
	return toEventResponse(event), nil
}

// GetByID retrieves an event by ID
func (s *eventService) GetByID(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return toEventResponse(event), nil
}

// List retrieves events with pagination and filters
func (s *eventService) List(ctx context.Context, query *dto.ListEventsQuery) (*dto.ListEventsResponse, error) {
	query.SetDefaults()

	events, totalCount, err := s.eventRepo.List(ctx, query.Page, query.Limit, query.IsActive, query.Search)
	if err != nil {
		return nil, err
	}

	eventResponses := make([]dto.EventResponse, 0, len(events))
	for _, event := range events {
		eventResponses = append(eventResponses, *toEventResponse(event))
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(query.Limit)))

	return &dto.ListEventsResponse{
		Events:     eventResponses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages,
	}, nil
}

// Activate makes the event the active fallback, deactivating any other
func (s *eventService) Activate(ctx context.Context, id string) (*dto.EventResponse, error) {
	if err := s.eventRepo.Activate(ctx, id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func toEventResponse(event *domain.Event) *dto.EventResponse {
	return &dto.EventResponse{
		ID:        event.ID,
		Name:      event.Name,
		Slug:      event.Slug,
		StartsAt:  event.StartsAt.Format(time.RFC3339),
		EndsAt:    event.EndsAt.Format(time.RFC3339),
		IsActive:  event.IsActive,
		CreatedAt: event.CreatedAt.Format(time.RFC3339),
		UpdatedAt: event.UpdatedAt.Format(time.RFC3339),
	}
}
