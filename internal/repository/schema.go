package repository

import (
	"fmt"
	"time"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/scoped"
)

// Column maps one table column to a field of T
type Column[T any] struct {
	Name string
	// Get returns the field value for filtering, ordering and inserts
	Get func(row T) any
	// Ptr returns a scan destination for the field
	Ptr func(row T) any
	// Set assigns a normalized value; nil for read-only columns
	Set func(row T, v any) error
}

// Schema describes how a record type is stored
type Schema[T scoped.Entity] struct {
	Table   string
	New     func() T
	Clone   func(row T) T
	Columns []Column[T]
}

func (s *Schema[T]) column(name string) (*Column[T], error) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], nil
		}
	}
	return nil, fmt.Errorf("%s: unknown column %q", s.Table, name)
}

func (s *Schema[T]) names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

func (s *Schema[T]) scanTargets(row T) []any {
	out := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Ptr(row)
	}
	return out
}

func setString(dst *string) func(any) error {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		*dst = s
		return nil
	}
}

func setNullString(dst **string) func(any) error {
	return func(v any) error {
		if v == nil {
			*dst = nil
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string or null, got %T", v)
		}
		*dst = &s
		return nil
	}
}

func setInt(dst *int) func(any) error {
	return func(v any) error {
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("expected int, got %T", v)
		}
		*dst = n
		return nil
	}
}

func setTime(dst *time.Time) func(any) error {
	return func(v any) error {
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time, got %T", v)
		}
		*dst = t
		return nil
	}
}

func setFlag(dst *domain.Flag) func(any) error {
	return func(v any) error {
		n, ok := v.(int)
		if !ok || !domain.Flag(n).IsValid() {
			return fmt.Errorf("%w: %v", domain.ErrInvalidFlag, v)
		}
		*dst = domain.Flag(n)
		return nil
	}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// TableSchema stores domain.Table in tables
var TableSchema = &Schema[*domain.Table]{
	Table: "tables",
	New:   func() *domain.Table { return &domain.Table{} },
	Clone: func(r *domain.Table) *domain.Table { c := *r; return &c },
	Columns: []Column[*domain.Table]{
		{Name: "id", Get: func(r *domain.Table) any { return r.ID }, Ptr: func(r *domain.Table) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.Table) any { return r.EventID }, Ptr: func(r *domain.Table) any { return &r.EventID }},
		{Name: "number", Get: func(r *domain.Table) any { return r.Number }, Ptr: func(r *domain.Table) any { return &r.Number },
			Set: func(r *domain.Table, v any) error { return setInt(&r.Number)(v) }},
		{Name: "location", Get: func(r *domain.Table) any { return r.Location }, Ptr: func(r *domain.Table) any { return &r.Location },
			Set: func(r *domain.Table, v any) error { return setString(&r.Location)(v) }},
		{Name: "created_at", Get: func(r *domain.Table) any { return r.CreatedAt }, Ptr: func(r *domain.Table) any { return &r.CreatedAt }},
	},
}

// TeamSchema stores domain.Team in teams
var TeamSchema = &Schema[*domain.Team]{
	Table: "teams",
	New:   func() *domain.Team { return &domain.Team{} },
	Clone: func(r *domain.Team) *domain.Team { c := *r; c.TableID = cloneString(r.TableID); return &c },
	Columns: []Column[*domain.Team]{
		{Name: "id", Get: func(r *domain.Team) any { return r.ID }, Ptr: func(r *domain.Team) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.Team) any { return r.EventID }, Ptr: func(r *domain.Team) any { return &r.EventID }},
		{Name: "name", Get: func(r *domain.Team) any { return r.Name }, Ptr: func(r *domain.Team) any { return &r.Name },
			Set: func(r *domain.Team, v any) error { return setString(&r.Name)(v) }},
		{Name: "table_id", Get: func(r *domain.Team) any { return scoped.Normalize(r.TableID) }, Ptr: func(r *domain.Team) any { return &r.TableID },
			Set: func(r *domain.Team, v any) error { return setNullString(&r.TableID)(v) }},
		{Name: "created_at", Get: func(r *domain.Team) any { return r.CreatedAt }, Ptr: func(r *domain.Team) any { return &r.CreatedAt }},
	},
}

// LightHouseSchema stores domain.LightHouse in lighthouses
var LightHouseSchema = &Schema[*domain.LightHouse]{
	Table: "lighthouses",
	New:   func() *domain.LightHouse { return &domain.LightHouse{} },
	Clone: func(r *domain.LightHouse) *domain.LightHouse {
		c := *r
		c.IPAddress = cloneString(r.IPAddress)
		return &c
	},
	Columns: []Column[*domain.LightHouse]{
		{Name: "id", Get: func(r *domain.LightHouse) any { return r.ID }, Ptr: func(r *domain.LightHouse) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.LightHouse) any { return r.EventID }, Ptr: func(r *domain.LightHouse) any { return &r.EventID }},
		{Name: "table_id", Get: func(r *domain.LightHouse) any { return r.TableID }, Ptr: func(r *domain.LightHouse) any { return &r.TableID }},
		{Name: "ip_address", Get: func(r *domain.LightHouse) any { return scoped.Normalize(r.IPAddress) }, Ptr: func(r *domain.LightHouse) any { return &r.IPAddress },
			Set: func(r *domain.LightHouse, v any) error { return setNullString(&r.IPAddress)(v) }},
		{Name: "mentor_requested", Get: func(r *domain.LightHouse) any { return int(r.MentorRequested) }, Ptr: func(r *domain.LightHouse) any { return (*int)(&r.MentorRequested) },
			Set: func(r *domain.LightHouse, v any) error { return setFlag(&r.MentorRequested)(v) }},
		{Name: "announcement_pending", Get: func(r *domain.LightHouse) any { return int(r.AnnouncementPending) }, Ptr: func(r *domain.LightHouse) any { return (*int)(&r.AnnouncementPending) },
			Set: func(r *domain.LightHouse, v any) error { return setFlag(&r.AnnouncementPending)(v) }},
		{Name: "updated_at", Get: func(r *domain.LightHouse) any { return r.UpdatedAt }, Ptr: func(r *domain.LightHouse) any { return &r.UpdatedAt },
			Set: func(r *domain.LightHouse, v any) error { return setTime(&r.UpdatedAt)(v) }},
	},
}

// MentorRequestSchema stores domain.MentorHelpRequest in mentor_requests
var MentorRequestSchema = &Schema[*domain.MentorHelpRequest]{
	Table: "mentor_requests",
	New:   func() *domain.MentorHelpRequest { return &domain.MentorHelpRequest{} },
	Clone: func(r *domain.MentorHelpRequest) *domain.MentorHelpRequest { c := *r; return &c },
	Columns: []Column[*domain.MentorHelpRequest]{
		{Name: "id", Get: func(r *domain.MentorHelpRequest) any { return r.ID }, Ptr: func(r *domain.MentorHelpRequest) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.MentorHelpRequest) any { return r.EventID }, Ptr: func(r *domain.MentorHelpRequest) any { return &r.EventID }},
		{Name: "team_id", Get: func(r *domain.MentorHelpRequest) any { return r.TeamID }, Ptr: func(r *domain.MentorHelpRequest) any { return &r.TeamID }},
		{Name: "status", Get: func(r *domain.MentorHelpRequest) any { return string(r.Status) }, Ptr: func(r *domain.MentorHelpRequest) any { return (*string)(&r.Status) },
			Set: func(r *domain.MentorHelpRequest, v any) error {
				s, ok := v.(string)
				if !ok || !domain.MentorStatus(s).IsValid() {
					return fmt.Errorf("%w: %v", domain.ErrInvalidMentorStatus, v)
				}
				r.Status = domain.MentorStatus(s)
				return nil
			}},
		{Name: "created_at", Get: func(r *domain.MentorHelpRequest) any { return r.CreatedAt }, Ptr: func(r *domain.MentorHelpRequest) any { return &r.CreatedAt }},
		{Name: "updated_at", Get: func(r *domain.MentorHelpRequest) any { return r.UpdatedAt }, Ptr: func(r *domain.MentorHelpRequest) any { return &r.UpdatedAt },
			Set: func(r *domain.MentorHelpRequest, v any) error { return setTime(&r.UpdatedAt)(v) }},
	},
}

// HardwareSchema stores domain.Hardware in hardware
var HardwareSchema = &Schema[*domain.Hardware]{
	Table: "hardware",
	New:   func() *domain.Hardware { return &domain.Hardware{} },
	Clone: func(r *domain.Hardware) *domain.Hardware { c := *r; return &c },
	Columns: []Column[*domain.Hardware]{
		{Name: "id", Get: func(r *domain.Hardware) any { return r.ID }, Ptr: func(r *domain.Hardware) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.Hardware) any { return r.EventID }, Ptr: func(r *domain.Hardware) any { return &r.EventID }},
		{Name: "name", Get: func(r *domain.Hardware) any { return r.Name }, Ptr: func(r *domain.Hardware) any { return &r.Name },
			Set: func(r *domain.Hardware, v any) error { return setString(&r.Name)(v) }},
		{Name: "model", Get: func(r *domain.Hardware) any { return r.Model }, Ptr: func(r *domain.Hardware) any { return &r.Model },
			Set: func(r *domain.Hardware, v any) error { return setString(&r.Model)(v) }},
		{Name: "description", Get: func(r *domain.Hardware) any { return r.Description }, Ptr: func(r *domain.Hardware) any { return &r.Description },
			Set: func(r *domain.Hardware, v any) error { return setString(&r.Description)(v) }},
		{Name: "quantity", Get: func(r *domain.Hardware) any { return r.Quantity }, Ptr: func(r *domain.Hardware) any { return &r.Quantity },
			Set: func(r *domain.Hardware, v any) error { return setInt(&r.Quantity)(v) }},
	},
}

// HardwareDeviceSchema stores domain.HardwareDevice in hardware_devices
var HardwareDeviceSchema = &Schema[*domain.HardwareDevice]{
	Table: "hardware_devices",
	New:   func() *domain.HardwareDevice { return &domain.HardwareDevice{} },
	Clone: func(r *domain.HardwareDevice) *domain.HardwareDevice {
		c := *r
		c.LentToTeamID = cloneString(r.LentToTeamID)
		return &c
	},
	Columns: []Column[*domain.HardwareDevice]{
		{Name: "id", Get: func(r *domain.HardwareDevice) any { return r.ID }, Ptr: func(r *domain.HardwareDevice) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.HardwareDevice) any { return r.EventID }, Ptr: func(r *domain.HardwareDevice) any { return &r.EventID }},
		{Name: "hardware_id", Get: func(r *domain.HardwareDevice) any { return r.HardwareID }, Ptr: func(r *domain.HardwareDevice) any { return &r.HardwareID }},
		{Name: "serial", Get: func(r *domain.HardwareDevice) any { return r.Serial }, Ptr: func(r *domain.HardwareDevice) any { return &r.Serial }},
		{Name: "lent_to_team_id", Get: func(r *domain.HardwareDevice) any { return scoped.Normalize(r.LentToTeamID) }, Ptr: func(r *domain.HardwareDevice) any { return &r.LentToTeamID },
			Set: func(r *domain.HardwareDevice, v any) error { return setNullString(&r.LentToTeamID)(v) }},
	},
}

// WorkshopSchema stores domain.Workshop in workshops
var WorkshopSchema = &Schema[*domain.Workshop]{
	Table: "workshops",
	New:   func() *domain.Workshop { return &domain.Workshop{} },
	Clone: func(r *domain.Workshop) *domain.Workshop { c := *r; return &c },
	Columns: []Column[*domain.Workshop]{
		{Name: "id", Get: func(r *domain.Workshop) any { return r.ID }, Ptr: func(r *domain.Workshop) any { return &r.ID }},
		{Name: "event_id", Get: func(r *domain.Workshop) any { return r.EventID }, Ptr: func(r *domain.Workshop) any { return &r.EventID }},
		{Name: "title", Get: func(r *domain.Workshop) any { return r.Title }, Ptr: func(r *domain.Workshop) any { return &r.Title },
			Set: func(r *domain.Workshop, v any) error { return setString(&r.Title)(v) }},
		{Name: "location", Get: func(r *domain.Workshop) any { return r.Location }, Ptr: func(r *domain.Workshop) any { return &r.Location },
			Set: func(r *domain.Workshop, v any) error { return setString(&r.Location)(v) }},
		{Name: "starts_at", Get: func(r *domain.Workshop) any { return r.StartsAt }, Ptr: func(r *domain.Workshop) any { return &r.StartsAt },
			Set: func(r *domain.Workshop, v any) error { return setTime(&r.StartsAt)(v) }},
		{Name: "ends_at", Get: func(r *domain.Workshop) any { return r.EndsAt }, Ptr: func(r *domain.Workshop) any { return &r.EndsAt },
			Set: func(r *domain.Workshop, v any) error { return setTime(&r.EndsAt)(v) }},
	},
}
