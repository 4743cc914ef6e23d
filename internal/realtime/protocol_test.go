package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
)

func TestParseTableMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr bool
	}{
		{
			name:  "broadcast kept verbatim",
			input: `{"message":"hello","extra":[1,2]}`,
			want:  Broadcast{Raw: []byte(`{"message":"hello","extra":[1,2]}`)},
		},
		{
			name:  "broadcast wins over status fields",
			input: `{"message":{"x":1},"ip_address":"10.0.0.1"}`,
			want:  Broadcast{Raw: []byte(`{"message":{"x":1},"ip_address":"10.0.0.1"}`)},
		},
		{name: "not json", input: `hello`, wantErr: true},
		{name: "array", input: `[1,2]`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
		{name: "unknown fields", input: `{"foo":"bar"}`, wantErr: true},
		{name: "ip wrong type", input: `{"ip_address":5}`, wantErr: true},
		{name: "flag out of range", input: `{"mentor_requested":7}`, wantErr: true},
		{name: "explicit nulls change nothing", input: `{"ip_address":null}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTableMessage([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTableMessage_Mutation(t *testing.T) {
	msg, err := ParseTableMessage([]byte(`{"ip_address":"10.0.0.5","mentor_requested":1}`))
	require.NoError(t, err)

	m, ok := msg.(StatusMutation)
	require.True(t, ok)
	require.NotNil(t, m.IPAddress)
	assert.Equal(t, "10.0.0.5", *m.IPAddress)
	require.NotNil(t, m.MentorRequested)
	assert.Equal(t, domain.FlagRequested, *m.MentorRequested)

	msg, err = ParseTableMessage([]byte(`{"ip_address":""}`))
	require.NoError(t, err)
	m = msg.(StatusMutation)
	assert.Equal(t, "", *m.IPAddress)
	assert.Nil(t, m.MentorRequested)
}

func TestParseGlobalMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr bool
	}{
		{
			name:  "announcement",
			input: `{"tables":[1,2],"type":"announcement","status":1}`,
			want:  Announcement{Tables: []int{1, 2}, Status: domain.FlagRequested},
		},
		{
			name:  "mentor request by name",
			input: `{"tables":[3],"type":"mentor_request","status":"en_route"}`,
			want:  MentorRequest{Tables: []int{3}, Status: domain.MentorEnRoute},
		},
		{
			name:  "mentor request by code",
			input: `{"tables":[3],"type":"mentor_request","status":0}`,
			want:  MentorRequest{Tables: []int{3}, Status: domain.MentorResolved},
		},
		{name: "missing tables", input: `{"type":"announcement","status":1}`, wantErr: true},
		{name: "empty tables", input: `{"tables":[],"type":"announcement","status":1}`, wantErr: true},
		{name: "missing status", input: `{"tables":[1],"type":"announcement"}`, wantErr: true},
		{name: "unknown type", input: `{"tables":[1],"type":"reboot","status":1}`, wantErr: true},
		{name: "bad flag", input: `{"tables":[1],"type":"announcement","status":9}`, wantErr: true},
		{name: "bad mentor status", input: `{"tables":[1],"type":"mentor_request","status":"lost"}`, wantErr: true},
		{name: "tables not ints", input: `{"tables":["a"],"type":"announcement","status":1}`, wantErr: true},
		{name: "broadcast not accepted", input: `{"message":"hi"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGlobalMessage([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRoom(t *testing.T) {
	room, err := ParseRoom("ev", "global")
	require.NoError(t, err)
	assert.True(t, room.IsGlobal())
	assert.Equal(t, "global", room.Kind())
	assert.Equal(t, "ev:lighthouse_global", room.String())

	room, err = ParseRoom("ev", "12")
	require.NoError(t, err)
	assert.False(t, room.IsGlobal())
	n, ok := room.Table()
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	assert.Equal(t, TableRoom("ev", 12), room)

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := ParseRoom("ev", bad)
		assert.ErrorIs(t, err, ErrInvalidRoom, bad)
	}

	_, ok = GlobalRoom("ev").Table()
	assert.False(t, ok)
}

func TestRoomsAreNamespacedByEvent(t *testing.T) {
	assert.NotEqual(t, TableRoom("a", 1), TableRoom("b", 1))
	assert.NotEqual(t, GlobalRoom("a"), GlobalRoom("b"))
}

func TestEncodeStatusUpdate(t *testing.T) {
	ip := "10.0.0.9"
	data, err := encodeStatusUpdate(&dto.LighthouseSnapshot{Table: 4, IPAddress: &ip, AnnouncementPending: domain.FlagRequested})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status","table":4,"ip_address":"10.0.0.9","mentor_requested":0,"announcement_pending":1}`, string(data))
}
