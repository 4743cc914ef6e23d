package realtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hackportal/portal/internal/domain"
)

var ErrInvalidRoom = errors.New("invalid room")

// Room identifies a broadcast group. Rooms are always namespaced by event
// so members of different events never share one.
type Room struct {
	EventID string `json:"event_id"`
	Name    string `json:"name"`
}

// TableRoom is the room for one table's status device
func TableRoom(eventID string, table int) Room {
	return Room{EventID: eventID, Name: domain.LighthouseRoom(table)}
}

// GlobalRoom is the organizer room that drives every table
func GlobalRoom(eventID string) Room {
	return Room{EventID: eventID, Name: domain.GlobalLighthouseRoom}
}

// ParseRoom reads the room route parameter: "global" or a table number
func ParseRoom(eventID, param string) (Room, error) {
	if param == "global" {
		return GlobalRoom(eventID), nil
	}
	n, err := strconv.Atoi(param)
	if err != nil || n < 0 {
		return Room{}, fmt.Errorf("%w: %q", ErrInvalidRoom, param)
	}
	return TableRoom(eventID, n), nil
}

func (r Room) String() string {
	return r.EventID + ":" + r.Name
}

// IsGlobal reports whether this is the organizer room
func (r Room) IsGlobal() bool {
	return r.Name == domain.GlobalLighthouseRoom
}

// Table returns the table number of a table room
func (r Room) Table() (int, bool) {
	suffix, ok := strings.CutPrefix(r.Name, "lighthouse_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Kind is "global" or "table", used as a metric label
func (r Room) Kind() string {
	if r.IsGlobal() {
		return "global"
	}
	return "table"
}
