// Package realtime runs the lighthouse rooms: per-table rooms for the
// status devices and one global room per event for organizers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/scoped"
	"github.com/hackportal/portal/internal/service"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/telemetry"
)

// StatusStore is the part of the status service the hub drives
type StatusStore interface {
	Snapshot(ctx context.Context, eventID string, table int) (*dto.LighthouseSnapshot, error)
	SnapshotAll(ctx context.Context, eventID string) ([]dto.LighthouseSnapshot, error)
	ApplyMutation(ctx context.Context, eventID string, table int, m *dto.StatusMutation) (*dto.LighthouseSnapshot, error)
	SetAnnouncement(ctx context.Context, eventID string, table int, flag domain.Flag) (*dto.LighthouseSnapshot, error)
	SetMentorStatus(ctx context.Context, eventID string, table int, status domain.MentorStatus) (*service.MentorResult, error)
}

// Config holds connection settings
type Config struct {
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteTimeout    time.Duration
	// MaxMessageBytes is the largest message handled; larger ones are dropped
	MaxMessageBytes int64
	// ReadLimit is the largest frame read at all; larger ones close the connection
	ReadLimit int64
}

// DefaultConfig returns the connection defaults
func DefaultConfig() Config {
	return Config{
		SendBuffer:      64,
		PingInterval:    25 * time.Second,
		PongWait:        60 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxMessageBytes: 8 << 10,
		ReadLimit:       1 << 20,
	}
}

// Hub tracks room membership on this instance and routes messages
type Hub struct {
	mu    sync.RWMutex
	rooms map[Room]map[*Client]struct{}

	status  StatusStore
	bus     Bus
	metrics *Metrics
	log     *logger.Logger
	cfg     Config
}

// NewHub creates a hub. Call Start before serving connections.
func NewHub(status StatusStore, bus Bus, metrics *Metrics, log *logger.Logger, cfg Config) *Hub {
	if bus == nil {
		bus = NewLocalBus()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = cfg.PingInterval * 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.ReadLimit <= cfg.MaxMessageBytes {
		cfg.ReadLimit = max(def.ReadLimit, cfg.MaxMessageBytes*16)
	}

	return &Hub{
		rooms:   make(map[Room]map[*Client]struct{}),
		status:  status,
		bus:     bus,
		metrics: metrics,
		log:     log.Named("hub"),
		cfg:     cfg,
	}
}

// Start connects the hub to its bus
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Start(ctx, h.deliver)
}

// Close disconnects every local client and the bus
func (h *Hub) Close() error {
	h.mu.RLock()
	var clients []*Client
	for _, members := range h.rooms {
		for c := range members {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	return h.bus.Close()
}

// Serve runs one upgraded connection in room until it closes. The
// connection first receives the room's snapshot.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, room Room) error {
	c := newClient(h, conn, room)
	log := h.log.WithContext(ctx).WithFields(zap.String("room", room.Name))

	h.join(c)
	defer h.leave(c)

	snapshot, err := h.snapshot(ctx, room)
	if err != nil {
		c.close()
		_ = conn.Close()
		if errors.Is(err, scoped.ErrEventScoping) {
			log.Error("unscoped snapshot query", zap.Error(err))
		} else {
			log.Warn("failed to load snapshot", zap.Error(err))
		}
		return err
	}
	c.enqueue(snapshot)

	log.Debug("client connected")
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	err = c.readPump(ctx)
	c.close()
	<-writerDone

	log.Debug("client disconnected", zap.Error(err))
	return err
}

// RoomSize returns the number of local members in room
func (h *Hub) RoomSize(room Room) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[c.room] = members
	}
	members[c] = struct{}{}
	n := len(h.rooms)
	h.mu.Unlock()

	h.metrics.connected(c.room)
	h.metrics.setRooms(n)
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
	n := len(h.rooms)
	h.mu.Unlock()

	h.metrics.disconnected(c.room)
	h.metrics.setRooms(n)
}

// members returns a snapshot of room membership so fan-out never holds
// the lock while writing
func (h *Hub) members(room Room) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// deliver fans a bus envelope out to local members
func (h *Hub) deliver(env Envelope) {
	for _, c := range h.members(env.Room) {
		if !c.enqueue(env.Payload) {
			h.metrics.queueFull()
			h.log.Debug("send queue full, message skipped", zap.String("room", env.Room.String()))
		}
	}
}

func (h *Hub) publish(ctx context.Context, room Room, payload []byte) error {
	return h.bus.Publish(ctx, Envelope{Room: room, Payload: payload})
}

func (h *Hub) snapshot(ctx context.Context, room Room) ([]byte, error) {
	if room.IsGlobal() {
		snaps, err := h.status.SnapshotAll(ctx, room.EventID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snaps)
	}

	table, ok := room.Table()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoom, room.Name)
	}
	snap, err := h.status.Snapshot(ctx, room.EventID, table)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// Handle decodes and applies one inbound frame from a member of room
func (h *Hub) Handle(ctx context.Context, room Room, data []byte) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "hub.handle")
	defer span.End()
	span.SetAttributes(telemetry.EventIDAttr(room.EventID), telemetry.RoomAttr(room.Name))

	var (
		msg Message
		err error
	)
	if room.IsGlobal() {
		msg, err = ParseGlobalMessage(data)
	} else {
		msg, err = ParseTableMessage(data)
	}
	if err != nil {
		return h.record(ctx, room, "unknown", Dropped(ReasonMalformed, err))
	}

	var o Outcome
	switch m := msg.(type) {
	case Broadcast:
		o = h.handleBroadcast(ctx, room, m)
	case StatusMutation:
		o = h.handleMutation(ctx, room, m)
	case Announcement:
		o = h.handleAnnouncement(ctx, room, m)
	case MentorRequest:
		o = h.handleMentorRequest(ctx, room, m)
	default:
		o = Dropped(ReasonMalformed, fmt.Errorf("unhandled message %T", msg))
	}
	return h.record(ctx, room, msg.kind(), o)
}

// dropOversized records a frame that was discarded unread
func (h *Hub) dropOversized(ctx context.Context, room Room, size int64) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "hub.handle")
	defer span.End()
	span.SetAttributes(telemetry.EventIDAttr(room.EventID), telemetry.RoomAttr(room.Name))

	err := fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, h.cfg.MaxMessageBytes)
	return h.record(ctx, room, "unknown", Dropped(ReasonMalformed, err))
}

func (h *Hub) record(ctx context.Context, room Room, kind string, o Outcome) Outcome {
	h.metrics.outcome(ctx, room, kind, o)
	if o.Kind != OutcomeDropped {
		return o
	}

	fields := []zap.Field{
		zap.String("room", room.Name),
		zap.String("kind", kind),
		zap.String("reason", o.Reason),
		zap.Error(o.Err),
	}
	log := h.log.WithContext(ctx)
	switch {
	case errors.Is(o.Err, scoped.ErrEventScoping):
		log.Error("unscoped query while handling message", fields...)
	case o.Reason == ReasonStoreError:
		telemetry.SetSpanError(ctx, o.Err)
		log.Warn("message dropped", fields...)
	default:
		log.Debug("message dropped", fields...)
	}
	return o
}

func (h *Hub) handleBroadcast(ctx context.Context, room Room, m Broadcast) Outcome {
	if err := h.publish(ctx, room, m.Raw); err != nil {
		return Dropped(ReasonStoreError, err)
	}
	return Broadcasted()
}

func (h *Hub) handleMutation(ctx context.Context, room Room, m StatusMutation) Outcome {
	table, ok := room.Table()
	if !ok {
		return Dropped(ReasonWrongRoom, nil)
	}
	telemetry.SetSpanAttributes(ctx, telemetry.TableAttr(table))
	// devices clear the mentor flag; raising it goes through the request workflow
	if f := m.MentorRequested; f != nil && *f != domain.FlagResolved {
		return Dropped(ReasonInvalid, fmt.Errorf("%w: table room may only clear mentor_requested, got %d", domain.ErrInvalidFlag, *f))
	}
	if _, err := h.status.ApplyMutation(ctx, room.EventID, table, &m.StatusMutation); err != nil {
		return dropFor(err)
	}
	return Applied()
}

func (h *Hub) handleAnnouncement(ctx context.Context, room Room, m Announcement) Outcome {
	telemetry.SetSpanAttributes(ctx, telemetry.StatusAttr(m.Status.String()))
	return h.eachTable(ctx, room, m.Tables, func(ctx context.Context, table int) (*dto.LighthouseSnapshot, error) {
		return h.status.SetAnnouncement(ctx, room.EventID, table, m.Status)
	})
}

func (h *Hub) handleMentorRequest(ctx context.Context, room Room, m MentorRequest) Outcome {
	telemetry.SetSpanAttributes(ctx, telemetry.StatusAttr(string(m.Status)))
	return h.eachTable(ctx, room, m.Tables, func(ctx context.Context, table int) (*dto.LighthouseSnapshot, error) {
		res, err := h.status.SetMentorStatus(ctx, room.EventID, table, m.Status)
		if err != nil {
			return nil, err
		}
		if res.Action == service.MentorBlocked {
			return nil, errFlood
		}
		return res.Snapshot, nil
	})
}

var errFlood = errors.New("another mentor request is still open")

// eachTable applies fn to every table independently. The command counts
// as applied when at least one table changed; otherwise the first
// failure is reported. An unscoped query stops the loop.
func (h *Hub) eachTable(ctx context.Context, room Room, tables []int, fn func(ctx context.Context, table int) (*dto.LighthouseSnapshot, error)) Outcome {
	if !room.IsGlobal() {
		return Dropped(ReasonWrongRoom, nil)
	}

	var first *Outcome
	applied := false
	for _, table := range tables {
		snap, err := h.applyTable(ctx, table, fn)
		if err != nil {
			o := dropFor(err)
			if errors.Is(err, scoped.ErrEventScoping) {
				return o
			}
			if first == nil {
				first = &o
			}
			continue
		}
		applied = true
		h.pushStatus(ctx, room.EventID, snap)
	}

	if applied || first == nil {
		return Applied()
	}
	return *first
}

func (h *Hub) applyTable(ctx context.Context, table int, fn func(ctx context.Context, table int) (*dto.LighthouseSnapshot, error)) (*dto.LighthouseSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "hub.table")
	defer span.End()
	span.SetAttributes(telemetry.TableAttr(table))

	snap, err := fn(ctx, table)
	if err != nil {
		telemetry.SetSpanAttributes(ctx, telemetry.ReasonAttr(dropFor(err).Reason))
	}
	return snap, err
}

// pushStatus sends a table's new state to its device and to organizers
func (h *Hub) pushStatus(ctx context.Context, eventID string, snap *dto.LighthouseSnapshot) {
	payload, err := encodeStatusUpdate(snap)
	if err != nil {
		h.log.ErrorContext(ctx, "failed to encode status update", zap.Error(err))
		return
	}
	for _, room := range []Room{TableRoom(eventID, snap.Table), GlobalRoom(eventID)} {
		if err := h.publish(ctx, room, payload); err != nil {
			h.log.WarnContext(ctx, "failed to push status update", zap.String("room", room.Name), zap.Error(err))
		}
	}
}

func dropFor(err error) Outcome {
	switch {
	case errors.Is(err, errFlood):
		return Dropped(ReasonFlood, err)
	case errors.Is(err, domain.ErrTableNotFound):
		return Dropped(ReasonUnknownTable, err)
	case errors.Is(err, domain.ErrTeamNotFound):
		return Dropped(ReasonNoTeam, err)
	case errors.Is(err, domain.ErrMentorRequestNotFound):
		return Dropped(ReasonNoRequest, err)
	case errors.Is(err, domain.ErrInvalidFlag),
		errors.Is(err, domain.ErrInvalidMentorStatus),
		errors.Is(err, service.ErrInvalidIPAddress),
		errors.Is(err, service.ErrEmptyMutation):
		return Dropped(ReasonInvalid, err)
	default:
		return Dropped(ReasonStoreError, err)
	}
}
