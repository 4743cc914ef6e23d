package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFlag         = errors.New("invalid flag value")
	ErrInvalidMentorStatus = errors.New("invalid mentor status")
	ErrInvalidTransition   = errors.New("invalid mentor status transition")
)

// Flag is the tri-state used for the lighthouse mentor and announcement
// indicators. The zero value is the resolved sentinel.
type Flag int

const (
	FlagResolved     Flag = 0
	FlagRequested    Flag = 1
	FlagAcknowledged Flag = 2
)

var flagNames = map[Flag]string{
	FlagResolved:     "resolved",
	FlagRequested:    "requested",
	FlagAcknowledged: "acknowledged",
}

func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return fmt.Sprintf("flag(%d)", int(f))
}

// IsValid returns true if f is one of the three known states
func (f Flag) IsValid() bool {
	_, ok := flagNames[f]
	return ok
}

// IsPending returns true while the indicator still needs attention
func (f Flag) IsPending() bool {
	return f == FlagRequested || f == FlagAcknowledged
}

// ParseFlag accepts a state name
func ParseFlag(s string) (Flag, error) {
	for f, name := range flagNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFlag, s)
}

// UnmarshalJSON accepts either the numeric state or its name
func (f *Flag) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if !Flag(n).IsValid() {
			return fmt.Errorf("%w: %d", ErrInvalidFlag, n)
		}
		*f = Flag(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFlag, string(data))
	}
	parsed, err := ParseFlag(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MentorStatus is the lifecycle state of a mentor help request
type MentorStatus string

const (
	MentorRequested    MentorStatus = "requested"
	MentorAcknowledged MentorStatus = "acknowledged"
	MentorEnRoute      MentorStatus = "en_route"
	MentorResolved     MentorStatus = "resolved"
)

// numeric codes accepted on the wire alongside the names
var mentorStatusCodes = map[int]MentorStatus{
	0: MentorResolved,
	1: MentorRequested,
	2: MentorAcknowledged,
	3: MentorEnRoute,
}

// validMentorTransitions lists the states each state may move to.
// Requested from resolved is not listed: a resolved request is closed and
// a new request row is opened instead.
var validMentorTransitions = map[MentorStatus][]MentorStatus{
	MentorRequested:    {MentorRequested, MentorAcknowledged, MentorEnRoute, MentorResolved},
	MentorAcknowledged: {MentorRequested, MentorAcknowledged, MentorEnRoute, MentorResolved},
	MentorEnRoute:      {MentorRequested, MentorAcknowledged, MentorEnRoute, MentorResolved},
	MentorResolved:     {MentorAcknowledged, MentorEnRoute, MentorResolved},
}

func (s MentorStatus) String() string {
	return string(s)
}

// IsValid returns true if s is a known status
func (s MentorStatus) IsValid() bool {
	_, ok := validMentorTransitions[s]
	return ok
}

// IsTerminal returns true once the request is closed
func (s MentorStatus) IsTerminal() bool {
	return s == MentorResolved
}

// CanTransitionTo checks whether moving an existing request to target is allowed
func (s MentorStatus) CanTransitionTo(target MentorStatus) bool {
	for _, allowed := range validMentorTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// LighthouseFlag is the indicator value shown on the table device for s
func (s MentorStatus) LighthouseFlag() Flag {
	switch s {
	case MentorRequested:
		return FlagRequested
	case MentorAcknowledged, MentorEnRoute:
		return FlagAcknowledged
	default:
		return FlagResolved
	}
}

// ParseMentorStatus accepts a status name; "en-route" is read as en_route
func ParseMentorStatus(s string) (MentorStatus, error) {
	st := MentorStatus(strings.ReplaceAll(strings.ToLower(s), "-", "_"))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMentorStatus, s)
	}
	return st, nil
}

// UnmarshalJSON accepts either the status name or its numeric code
func (s *MentorStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseMentorStatus(name)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMentorStatus, string(data))
	}
	st, ok := mentorStatusCodes[code]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidMentorStatus, code)
	}
	*s = st
	return nil
}
