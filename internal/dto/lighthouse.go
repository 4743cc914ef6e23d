package dto

import (
	"github.com/hackportal/portal/internal/domain"
)

// LighthouseSnapshot is the state of one table's lighthouse as sent to
// devices and organizers
type LighthouseSnapshot struct {
	Table               int         `json:"table"`
	IPAddress           *string     `json:"ip_address"`
	MentorRequested     domain.Flag `json:"mentor_requested"`
	AnnouncementPending domain.Flag `json:"announcement_pending"`
}

// NewLighthouseSnapshot builds a snapshot; a nil lighthouse yields the
// empty state
func NewLighthouseSnapshot(table int, lh *domain.LightHouse) LighthouseSnapshot {
	snap := LighthouseSnapshot{Table: table}
	if lh != nil {
		snap.IPAddress = lh.IPAddress
		snap.MentorRequested = lh.MentorRequested
		snap.AnnouncementPending = lh.AnnouncementPending
	}
	return snap
}

// StatusMutation updates a lighthouse. Absent fields are left alone.
type StatusMutation struct {
	IPAddress       *string      `json:"ip_address"`
	MentorRequested *domain.Flag `json:"mentor_requested"`
}

// IsEmpty reports whether the mutation changes nothing
func (m *StatusMutation) IsEmpty() bool {
	return m.IPAddress == nil && m.MentorRequested == nil
}

// MentorRequestResponse represents a mentor help request in responses
type MentorRequestResponse struct {
	ID        string              `json:"id"`
	TeamID    string              `json:"team_id"`
	Status    domain.MentorStatus `json:"status"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

// ListMentorRequestsQuery filters mentor requests
type ListMentorRequestsQuery struct {
	Status string `form:"status" binding:"omitempty"`
}
