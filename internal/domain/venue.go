package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTableNotFound         = errors.New("table not found")
	ErrTeamNotFound          = errors.New("no team is seated at this table")
	ErrMentorRequestNotFound = errors.New("no mentor request to update")
)

// Table is a physical table at the venue, identified by its number
type Table struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Number    int       `json:"number"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LighthouseRoom is the realtime room name for the table's status device
func (t *Table) LighthouseRoom() string {
	return LighthouseRoom(t.Number)
}

// LighthouseRoom returns the room name for a table number
func LighthouseRoom(number int) string {
	return fmt.Sprintf("lighthouse_%d", number)
}

// GlobalLighthouseRoom is the room organizers join to drive every table
const GlobalLighthouseRoom = "lighthouse_global"

// Team is a group of hackers, optionally seated at a table
type Team struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	TableID   *string   `json:"table_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LightHouse is the per-table status record driven over the realtime hub.
// At most one exists per table.
type LightHouse struct {
	ID                  string    `json:"id"`
	EventID             string    `json:"event_id"`
	TableID             string    `json:"table_id"`
	IPAddress           *string   `json:"ip_address"`
	MentorRequested     Flag      `json:"mentor_requested"`
	AnnouncementPending Flag      `json:"announcement_pending"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewLightHouse creates an empty status record for a table
func NewLightHouse(table *Table) *LightHouse {
	return &LightHouse{
		ID:        uuid.New().String(),
		EventID:   table.EventID,
		TableID:   table.ID,
		UpdatedAt: time.Now().UTC(),
	}
}

// MentorHelpRequest is one team's request for a mentor
type MentorHelpRequest struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	TeamID    string       `json:"team_id"`
	Status    MentorStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewMentorHelpRequest opens a request in the requested state. IDs are
// time ordered so that requests created in the same instant still sort by
// creation.
func NewMentorHelpRequest(team *Team, now time.Time) *MentorHelpRequest {
	now = now.UTC()
	return &MentorHelpRequest{
		ID:        uuid.Must(uuid.NewV7()).String(),
		EventID:   team.EventID,
		TeamID:    team.ID,
		Status:    MentorRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Hardware is a kind of lendable hardware with a stock count
type Hardware struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Name        string `json:"name"`
	Model       string `json:"model,omitempty"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

// HardwareDevice is a single lendable unit of a Hardware kind
type HardwareDevice struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	HardwareID   string  `json:"hardware_id"`
	Serial       string  `json:"serial"`
	LentToTeamID *string `json:"lent_to_team_id,omitempty"`
}

// IsAvailable reports whether the device is not lent out
func (d *HardwareDevice) IsAvailable() bool {
	return d.LentToTeamID == nil
}

// Workshop is a scheduled session during the event
type Workshop struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	Title    string    `json:"title"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}
