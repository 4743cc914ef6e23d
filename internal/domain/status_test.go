package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Flag
		wantErr bool
	}{
		{"numeric resolved", `0`, FlagResolved, false},
		{"numeric requested", `1`, FlagRequested, false},
		{"numeric acknowledged", `2`, FlagAcknowledged, false},
		{"name", `"acknowledged"`, FlagAcknowledged, false},
		{"name case insensitive", `"Requested"`, FlagRequested, false},
		{"out of range", `7`, 0, true},
		{"unknown name", `"maybe"`, 0, true},
		{"wrong type", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Flag
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFlag)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestFlag_MarshalsAsNumber(t *testing.T) {
	data, err := json.Marshal(struct {
		F Flag `json:"f"`
	}{FlagAcknowledged})
	require.NoError(t, err)
	assert.JSONEq(t, `{"f":2}`, string(data))
}

func TestMentorStatus_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    MentorStatus
		wantErr bool
	}{
		{`"requested"`, MentorRequested, false},
		{`"en-route"`, MentorEnRoute, false},
		{`"EN_ROUTE"`, MentorEnRoute, false},
		{`3`, MentorEnRoute, false},
		{`0`, MentorResolved, false},
		{`9`, "", true},
		{`"lost"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var s MentorStatus
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMentorStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestMentorStatus_Transitions(t *testing.T) {
	assert.True(t, MentorRequested.CanTransitionTo(MentorEnRoute))
	assert.True(t, MentorEnRoute.CanTransitionTo(MentorResolved))
	assert.True(t, MentorResolved.CanTransitionTo(MentorAcknowledged))
	assert.False(t, MentorResolved.CanTransitionTo(MentorRequested))
	assert.True(t, MentorResolved.IsTerminal())
	assert.False(t, MentorStatus("bogus").IsValid())
}

func TestMentorStatus_LighthouseFlag(t *testing.T) {
	assert.Equal(t, FlagRequested, MentorRequested.LighthouseFlag())
	assert.Equal(t, FlagAcknowledged, MentorAcknowledged.LighthouseFlag())
	assert.Equal(t, FlagAcknowledged, MentorEnRoute.LighthouseFlag())
	assert.Equal(t, FlagResolved, MentorResolved.LighthouseFlag())
}

func TestEvent_Validate(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	valid := &Event{Name: "Spring Hack", Slug: "spring", StartsAt: start, EndsAt: start.Add(36 * time.Hour)}
	assert.NoError(t, valid.Validate())
	assert.True(t, valid.IsRunning(start.Add(time.Hour)))
	assert.False(t, valid.IsRunning(start.Add(-time.Hour)))

	backwards := &Event{Name: "x", Slug: "x", StartsAt: start, EndsAt: start.Add(-time.Hour)}
	assert.ErrorIs(t, backwards.Validate(), ErrInvalidEvent)

	assert.ErrorIs(t, (&Event{Slug: "x"}).Validate(), ErrInvalidEvent)
}

func TestLighthouseRoom(t *testing.T) {
	assert.Equal(t, "lighthouse_12", (&Table{Number: 12}).LighthouseRoom())
}
