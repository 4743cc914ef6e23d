package dto

import (
	"regexp"
	"time"

	"github.com/hackportal/portal/pkg/response"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// CreateEventRequest represents request to create a new hackathon event
type CreateEventRequest struct {
	Name     string    `json:"name" binding:"required,min=2,max=255"`
	Slug     string    `json:"slug" binding:"required,min=2,max=100"`
	StartsAt time.Time `json:"starts_at" binding:"required"`
	EndsAt   time.Time `json:"ends_at" binding:"required"`
	IsActive bool      `json:"is_active"`
}

// ValidateSlug validates slug format (lowercase alphanumeric and hyphens only)
func (r *CreateEventRequest) ValidateSlug() (bool, string) {
	if !slugRegex.MatchString(r.Slug) {
		return false, "Slug must contain only lowercase letters, numbers, and hyphens"
	}
	if len(r.Slug) < 2 {
		return false, "Slug must be at least 2 characters"
	}
	if len(r.Slug) > 100 {
		return false, "Slug must not exceed 100 characters"
	}
	return true, ""
}

// EventResponse represents event data in response
type EventResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ListEventsQuery represents query parameters for listing events
type ListEventsQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	IsActive *bool  `form:"is_active" binding:"omitempty"`
	Search   string `form:"search" binding:"omitempty,max=255"`
}

// SetDefaults sets default values for query parameters
func (q *ListEventsQuery) SetDefaults() {
	def := response.DefaultPagination()
	if q.Page == 0 {
		q.Page = def.Page
	}
	if q.Limit == 0 {
		q.Limit = def.PerPage
	}
}

// ListEventsResponse represents paginated list of events
type ListEventsResponse struct {
	Events     []EventResponse `json:"events"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}
