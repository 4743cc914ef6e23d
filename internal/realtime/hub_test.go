package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/repository"
	"github.com/hackportal/portal/internal/service"
	"github.com/hackportal/portal/pkg/telemetry"
)

type recordingBus struct {
	*LocalBus
	mu   sync.Mutex
	sent []Envelope
}

func newRecordingBus() *recordingBus {
	return &recordingBus{LocalBus: NewLocalBus()}
}

func (b *recordingBus) Publish(ctx context.Context, env Envelope) error {
	b.mu.Lock()
	b.sent = append(b.sent, env)
	b.mu.Unlock()
	return b.LocalBus.Publish(ctx, env)
}

func (b *recordingBus) rooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, env := range b.sent {
		out[i] = env.Room.Name
	}
	return out
}

type hubFixture struct {
	hub    *Hub
	bus    *recordingBus
	status service.StatusService
	event  string
	other  string
}

// newHubFixture seeds two events with tables 1..3; tables 1 and 2 have teams
func newHubFixture(t *testing.T, cfg Config) *hubFixture {
	t.Helper()
	ctx := context.Background()
	stores := repository.NewMemoryStores()

	f := &hubFixture{
		bus:    newRecordingBus(),
		status: service.NewStatusService(stores, nil),
		event:  uuid.New().String(),
		other:  uuid.New().String(),
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, eventID := range []string{f.event, f.other} {
		require.NoError(t, stores.Events.Create(ctx, &domain.Event{ID: eventID, Name: eventID, Slug: eventID}))
		for n := 1; n <= 3; n++ {
			table := &domain.Table{ID: uuid.New().String(), Number: n, CreatedAt: base}
			require.NoError(t, stores.Tables.ForEvent(eventID).Create(ctx, table))
			if n <= 2 {
				team := &domain.Team{ID: uuid.New().String(), Name: fmt.Sprintf("team-%d", n), TableID: &table.ID, CreatedAt: base}
				require.NoError(t, stores.Teams.ForEvent(eventID).Create(ctx, team))
			}
		}
	}

	f.hub = NewHub(f.status, f.bus, NewMetrics(nil), nil, cfg)
	require.NoError(t, f.hub.Start(ctx))
	t.Cleanup(func() { _ = f.hub.Close() })
	return f
}

func TestHub_Handle(t *testing.T) {
	tests := []struct {
		name      string
		room      func(f *hubFixture) Room
		input     string
		want      OutcomeKind
		reason    string
		published []string
	}{
		{
			name:  "ip mutation is stored without broadcast",
			room:  func(f *hubFixture) Room { return TableRoom(f.event, 1) },
			input: `{"ip_address":"10.0.0.5"}`,
			want:  OutcomeApplied,
		},
		{
			name:      "message is relayed to the room",
			room:      func(f *hubFixture) Room { return TableRoom(f.event, 2) },
			input:     `{"message":"ping"}`,
			want:      OutcomeBroadcast,
			published: []string{"lighthouse_2"},
		},
		{
			name:   "garbage",
			room:   func(f *hubFixture) Room { return TableRoom(f.event, 1) },
			input:  `not json`,
			want:   OutcomeDropped,
			reason: ReasonMalformed,
		},
		{
			name:   "bad ip",
			room:   func(f *hubFixture) Room { return TableRoom(f.event, 1) },
			input:  `{"ip_address":"not-an-ip"}`,
			want:   OutcomeDropped,
			reason: ReasonInvalid,
		},
		{
			name:  "device clears mentor flag",
			room:  func(f *hubFixture) Room { return TableRoom(f.event, 1) },
			input: `{"mentor_requested":0}`,
			want:  OutcomeApplied,
		},
		{
			name:   "device cannot raise mentor flag",
			room:   func(f *hubFixture) Room { return TableRoom(f.event, 1) },
			input:  `{"ip_address":"10.0.0.5","mentor_requested":1}`,
			want:   OutcomeDropped,
			reason: ReasonInvalid,
		},
		{
			name:   "device cannot acknowledge",
			room:   func(f *hubFixture) Room { return TableRoom(f.event, 1) },
			input:  `{"mentor_requested":2}`,
			want:   OutcomeDropped,
			reason: ReasonInvalid,
		},
		{
			name:   "unknown table",
			room:   func(f *hubFixture) Room { return TableRoom(f.event, 99) },
			input:  `{"ip_address":"10.0.0.5"}`,
			want:   OutcomeDropped,
			reason: ReasonUnknownTable,
		},
		{
			name:   "status fields in the global room",
			room:   func(f *hubFixture) Room { return GlobalRoom(f.event) },
			input:  `{"ip_address":"10.0.0.5"}`,
			want:   OutcomeDropped,
			reason: ReasonMalformed,
		},
		{
			name:   "mentor request at a table without a team",
			room:   func(f *hubFixture) Room { return GlobalRoom(f.event) },
			input:  `{"tables":[3],"type":"mentor_request","status":"requested"}`,
			want:   OutcomeDropped,
			reason: ReasonNoTeam,
		},
		{
			name:   "acknowledge with nothing requested",
			room:   func(f *hubFixture) Room { return GlobalRoom(f.event) },
			input:  `{"tables":[1],"type":"mentor_request","status":"acknowledged"}`,
			want:   OutcomeDropped,
			reason: ReasonNoRequest,
		},
		{
			name:      "announcement applies to known tables only",
			room:      func(f *hubFixture) Room { return GlobalRoom(f.event) },
			input:     `{"tables":[1,99],"type":"announcement","status":1}`,
			want:      OutcomeApplied,
			published: []string{"lighthouse_1", "lighthouse_global"},
		},
		{
			name:   "announcement with only unknown tables",
			room:   func(f *hubFixture) Room { return GlobalRoom(f.event) },
			input:  `{"tables":[98,99],"type":"announcement","status":1}`,
			want:   OutcomeDropped,
			reason: ReasonUnknownTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHubFixture(t, Config{})
			o := f.hub.Handle(context.Background(), tt.room(f), []byte(tt.input))

			assert.Equal(t, tt.want, o.Kind)
			assert.Equal(t, tt.reason, o.Reason)
			assert.Equal(t, len(tt.published), len(f.bus.rooms()))
			if len(tt.published) > 0 {
				assert.Equal(t, tt.published, f.bus.rooms())
			}
		})
	}
}

func TestHub_MentorFlood(t *testing.T) {
	f := newHubFixture(t, Config{})
	ctx := context.Background()
	global := GlobalRoom(f.event)

	o := f.hub.Handle(ctx, global, []byte(`{"tables":[1],"type":"mentor_request","status":"requested"}`))
	assert.Equal(t, OutcomeApplied, o.Kind)

	o = f.hub.Handle(ctx, global, []byte(`{"tables":[2],"type":"mentor_request","status":"requested"}`))
	assert.Equal(t, OutcomeDropped, o.Kind)
	assert.Equal(t, ReasonFlood, o.Reason)

	// the other event is unaffected
	o = f.hub.Handle(ctx, GlobalRoom(f.other), []byte(`{"tables":[2],"type":"mentor_request","status":"requested"}`))
	assert.Equal(t, OutcomeApplied, o.Kind)

	o = f.hub.Handle(ctx, global, []byte(`{"tables":[1],"type":"mentor_request","status":"resolved"}`))
	assert.Equal(t, OutcomeApplied, o.Kind)

	o = f.hub.Handle(ctx, global, []byte(`{"tables":[2],"type":"mentor_request","status":"requested"}`))
	assert.Equal(t, OutcomeApplied, o.Kind)

	snap, err := f.status.Snapshot(ctx, f.event, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagRequested, snap.MentorRequested)
}

func TestHub_TracesTables(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	_, err := telemetry.Init(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newHubFixture(t, Config{})
	o := f.hub.Handle(context.Background(), GlobalRoom(f.event), []byte(`{"tables":[1,3],"type":"mentor_request","status":"requested"}`))
	require.Equal(t, OutcomeApplied, o.Kind)

	var tables []int64
	reasons := map[int64]string{}
	var mentorStatus string
	for _, span := range rec.Ended() {
		attrs := map[attribute.Key]attribute.Value{}
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		switch span.Name() {
		case "hub.table":
			n := attrs[telemetry.AttrTable].AsInt64()
			tables = append(tables, n)
			reasons[n] = attrs[telemetry.AttrReason].AsString()
		case "status.set_mentor":
			if attrs[telemetry.AttrTable].AsInt64() == 1 {
				mentorStatus = attrs[telemetry.AttrStatus].AsString()
			}
		}
	}
	assert.ElementsMatch(t, []int64{1, 3}, tables)
	assert.Empty(t, reasons[1])
	assert.Equal(t, ReasonNoTeam, reasons[3])
	assert.Equal(t, "requested", mentorStatus)
}

func TestHub_DeliverSkipsFullQueues(t *testing.T) {
	f := newHubFixture(t, Config{SendBuffer: 1})
	room := TableRoom(f.event, 1)

	slow := newClient(f.hub, nil, room)
	fast := newClient(f.hub, nil, room)
	f.hub.join(slow)
	f.hub.join(fast)
	defer f.hub.leave(slow)
	defer f.hub.leave(fast)

	f.hub.deliver(Envelope{Room: room, Payload: []byte(`{"message":1}`)})
	<-fast.send
	f.hub.deliver(Envelope{Room: room, Payload: []byte(`{"message":2}`)})

	assert.Equal(t, `{"message":2}`, string(<-fast.send))
	assert.Equal(t, `{"message":1}`, string(<-slow.send))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.hub.metrics.queueDrops))
}

func TestHub_MembershipIsPerRoom(t *testing.T) {
	f := newHubFixture(t, Config{})
	room := TableRoom(f.event, 1)

	a := newClient(f.hub, nil, room)
	b := newClient(f.hub, nil, room)
	f.hub.join(a)
	f.hub.join(b)
	assert.Equal(t, 2, f.hub.RoomSize(room))
	assert.Equal(t, 0, f.hub.RoomSize(TableRoom(f.other, 1)))

	f.hub.leave(a)
	assert.Equal(t, 1, f.hub.RoomSize(room))
	f.hub.leave(b)
	assert.Equal(t, 0, f.hub.RoomSize(room))

	// closed clients refuse new messages
	a.close()
	assert.False(t, a.enqueue([]byte("x")))
}

// websocket round trips

func serveRooms(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room, err := ParseRoom(r.URL.Query().Get("event"), r.URL.Query().Get("room"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(r.Context(), conn, room)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, eventID, room string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws%s/?event=%s&room=%s", strings.TrimPrefix(srv.URL, "http"), eventID, room)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected message %s", data)
}

func TestServe_SnapshotOnConnect(t *testing.T) {
	f := newHubFixture(t, Config{})
	srv := serveRooms(t, f.hub)
	ctx := context.Background()

	conn := dial(t, srv, f.event, "3")
	assert.JSONEq(t, `{"table":3,"ip_address":null,"mentor_requested":0,"announcement_pending":0}`, string(read(t, conn)))

	ip := "10.0.0.2"
	_, err := f.status.ApplyMutation(ctx, f.event, 2, &dto.StatusMutation{IPAddress: &ip})
	require.NoError(t, err)
	_, err = f.status.SetAnnouncement(ctx, f.event, 1, domain.FlagRequested)
	require.NoError(t, err)
	_, err = f.status.SetMentorStatus(ctx, f.event, 1, domain.MentorRequested)
	require.NoError(t, err)

	global := dial(t, srv, f.event, "global")
	payload := read(t, global)
	var snaps []dto.LighthouseSnapshot
	require.NoError(t, json.Unmarshal(payload, &snaps))
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].Table)
	assert.Equal(t, domain.FlagRequested, snaps[0].MentorRequested)
	assert.Equal(t, domain.FlagRequested, snaps[0].AnnouncementPending)
	assert.Equal(t, 2, snaps[1].Table)
	assert.Equal(t, domain.FlagResolved, snaps[1].MentorRequested)
	assert.Equal(t, "10.0.0.2", *snaps[1].IPAddress)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.EqualValues(t, 1, raw[0]["mentor_requested"])
	assert.EqualValues(t, 0, raw[1]["mentor_requested"])

	otherGlobal := dial(t, srv, f.other, "global")
	assert.JSONEq(t, `[]`, string(read(t, otherGlobal)))
}

func TestServe_AddressSurvivesReconnect(t *testing.T) {
	f := newHubFixture(t, Config{})
	srv := serveRooms(t, f.hub)
	ctx := context.Background()

	conn := dial(t, srv, f.event, "1")
	assert.JSONEq(t, `{"table":1,"ip_address":null,"mentor_requested":0,"announcement_pending":0}`, string(read(t, conn)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ip_address":"10.0.0.5"}`)))
	require.Eventually(t, func() bool {
		snap, err := f.status.Snapshot(ctx, f.event, 1)
		return err == nil && snap.IPAddress != nil && *snap.IPAddress == "10.0.0.5"
	}, 2*time.Second, 10*time.Millisecond)
	assertSilent(t, conn)
	require.NoError(t, conn.Close())

	again := dial(t, srv, f.event, "1")
	assert.JSONEq(t, `{"table":1,"ip_address":"10.0.0.5","mentor_requested":0,"announcement_pending":0}`, string(read(t, again)))
}

func TestServe_BroadcastStaysInRoom(t *testing.T) {
	f := newHubFixture(t, Config{})
	srv := serveRooms(t, f.hub)

	sender := dial(t, srv, f.event, "1")
	peer := dial(t, srv, f.event, "1")
	neighbour := dial(t, srv, f.event, "2")
	otherEvent := dial(t, srv, f.other, "1")
	for _, c := range []*websocket.Conn{sender, peer, neighbour, otherEvent} {
		read(t, c)
	}

	// malformed frames are ignored and the connection stays up
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	msg := `{"message":{"text":"demo at 3pm"},"from":"stage"}`
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(msg)))

	assert.Equal(t, msg, string(read(t, peer)))
	assert.Equal(t, msg, string(read(t, sender)))
	assertSilent(t, neighbour)
	assertSilent(t, otherEvent)
}

func TestServe_OversizedFrameIsDropped(t *testing.T) {
	f := newHubFixture(t, Config{MaxMessageBytes: 256})
	srv := serveRooms(t, f.hub)
	require.Greater(t, f.hub.cfg.ReadLimit, int64(256))

	sender := dial(t, srv, f.event, "1")
	peer := dial(t, srv, f.event, "1")
	read(t, sender)
	read(t, peer)

	big := `{"message":"` + strings.Repeat("x", 4096) + `"}`
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(big)))
	msg := `{"message":"still here"}`
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(msg)))

	assert.Equal(t, msg, string(read(t, peer)))
	assert.Equal(t, msg, string(read(t, sender)))
	assertSilent(t, peer)
	assert.Equal(t, 2, f.hub.RoomSize(TableRoom(f.event, 1)))

	o := f.hub.dropOversized(context.Background(), TableRoom(f.event, 1), 4109)
	assert.Equal(t, OutcomeDropped, o.Kind)
	assert.Equal(t, ReasonMalformed, o.Reason)
	assert.ErrorIs(t, o.Err, ErrTooLarge)
}

func TestNewHub_ReadLimitCoversMessageLimit(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int64
	}{
		{"defaults", Config{}, 1 << 20},
		{"explicit", Config{MaxMessageBytes: 1 << 10, ReadLimit: 1 << 12}, 1 << 12},
		{"below message limit", Config{MaxMessageBytes: 1 << 20, ReadLimit: 1 << 10}, 16 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(nil, nil, nil, nil, tt.cfg)
			assert.Equal(t, tt.want, h.cfg.ReadLimit)
			assert.Greater(t, h.cfg.ReadLimit, h.cfg.MaxMessageBytes)
		})
	}
}

func TestServe_GlobalCommandPushesStatus(t *testing.T) {
	f := newHubFixture(t, Config{})
	srv := serveRooms(t, f.hub)

	table := dial(t, srv, f.event, "1")
	global := dial(t, srv, f.event, "global")
	read(t, table)
	read(t, global)

	require.NoError(t, global.WriteMessage(websocket.TextMessage, []byte(`{"tables":[1],"type":"mentor_request","status":"requested"}`)))

	want := `{"type":"status","table":1,"ip_address":null,"mentor_requested":1,"announcement_pending":0}`
	assert.JSONEq(t, want, string(read(t, table)))
	assert.JSONEq(t, want, string(read(t, global)))
}

func TestServe_Close(t *testing.T) {
	f := newHubFixture(t, Config{})
	srv := serveRooms(t, f.hub)
	room := TableRoom(f.event, 1)

	conn := dial(t, srv, f.event, "1")
	read(t, conn)
	assert.Equal(t, 1, f.hub.RoomSize(room))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.RoomSize(room) == 0 }, 2*time.Second, 10*time.Millisecond)
}
