package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
)

var (
	ErrMalformed = errors.New("malformed message")
	ErrTooLarge  = errors.New("message too large")
)

// Message is a decoded inbound frame. The concrete types are Broadcast,
// StatusMutation, Announcement and MentorRequest.
type Message interface {
	kind() string
}

// Broadcast is relayed verbatim to every member of the room
type Broadcast struct {
	Raw json.RawMessage
}

// StatusMutation updates the sender's table lighthouse
type StatusMutation struct {
	dto.StatusMutation
}

// Announcement sets the announcement flag on a set of tables
type Announcement struct {
	Tables []int
	Status domain.Flag
}

// MentorRequest drives the mentor request at a set of tables
type MentorRequest struct {
	Tables []int
	Status domain.MentorStatus
}

func (Broadcast) kind() string      { return "broadcast" }
func (StatusMutation) kind() string { return "status_mutation" }
func (Announcement) kind() string   { return "announcement" }
func (MentorRequest) kind() string  { return "mentor_request" }

// Global room command types
const (
	CommandAnnouncement  = "announcement"
	CommandMentorRequest = "mentor_request"
)

// ParseTableMessage decodes a frame sent in a table room
func ParseTableMessage(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	if _, ok := fields["message"]; ok {
		return Broadcast{Raw: json.RawMessage(bytes.TrimSpace(data))}, nil
	}

	_, hasIP := fields["ip_address"]
	_, hasMentor := fields["mentor_requested"]
	if !hasIP && !hasMentor {
		return nil, fmt.Errorf("%w: no known fields", ErrMalformed)
	}

	var m StatusMutation
	if err := json.Unmarshal(data, &m.StatusMutation); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrMalformed)
	}
	return m, nil
}

type globalCommand struct {
	Tables []int           `json:"tables"`
	Type   string          `json:"type"`
	Status json.RawMessage `json:"status"`
}

// ParseGlobalMessage decodes a command sent in the global room
func ParseGlobalMessage(data []byte) (Message, error) {
	var cmd globalCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(cmd.Tables) == 0 {
		return nil, fmt.Errorf("%w: tables is required", ErrMalformed)
	}
	if len(cmd.Status) == 0 || string(cmd.Status) == "null" {
		return nil, fmt.Errorf("%w: status is required", ErrMalformed)
	}

	switch cmd.Type {
	case CommandAnnouncement:
		var flag domain.Flag
		if err := json.Unmarshal(cmd.Status, &flag); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Announcement{Tables: cmd.Tables, Status: flag}, nil
	case CommandMentorRequest:
		var status domain.MentorStatus
		if err := json.Unmarshal(cmd.Status, &status); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return MentorRequest{Tables: cmd.Tables, Status: status}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, cmd.Type)
	}
}

// statusUpdate is pushed to table and global rooms after a global command
type statusUpdate struct {
	Type string `json:"type"`
	dto.LighthouseSnapshot
}

func encodeStatusUpdate(snap *dto.LighthouseSnapshot) ([]byte, error) {
	return json.Marshal(statusUpdate{Type: "status", LighthouseSnapshot: *snap})
}
