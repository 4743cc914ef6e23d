package dto

import (
	"time"

	"github.com/hackportal/portal/internal/domain"
)

// Event types published on the status topic
const (
	EventTypeLighthouseUpdated    = "lighthouse.updated"
	EventTypeMentorRequestCreated = "mentor_request.created"
	EventTypeMentorRequestUpdated = "mentor_request.updated"
)

// StatusEvent is published whenever a lighthouse or mentor request changes
type StatusEvent struct {
	EventType       string              `json:"event_type"`
	EventID         string              `json:"event_id"`
	Table           int                 `json:"table"`
	Lighthouse      *LighthouseSnapshot `json:"lighthouse,omitempty"`
	MentorRequestID string              `json:"mentor_request_id,omitempty"`
	TeamID          string              `json:"team_id,omitempty"`
	MentorStatus    domain.MentorStatus `json:"mentor_status,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning; all changes for one
// event stay ordered
func (e *StatusEvent) Key() string {
	return e.EventID
}
