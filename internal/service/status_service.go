package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/repository"
	"github.com/hackportal/portal/internal/scoped"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/telemetry"
)

var (
	ErrInvalidIPAddress = errors.New("invalid ip address")
	ErrEmptyMutation    = errors.New("mutation changes nothing")
)

// FloodScope decides where the mentor anti-flood check looks for open
// requests when a team has never asked before
type FloodScope string

const (
	FloodScopeEvent FloodScope = "event"
	FloodScopeTeam  FloodScope = "team"
)

// StatusService manages lighthouses and mentor help requests
type StatusService interface {
	// Snapshot returns one table's lighthouse state; unknown tables and
	// tables without a lighthouse yield the empty state
	Snapshot(ctx context.Context, eventID string, table int) (*dto.LighthouseSnapshot, error)
	// SnapshotAll returns every lighthouse in the event ordered by table
	SnapshotAll(ctx context.Context, eventID string) ([]dto.LighthouseSnapshot, error)
	// ApplyMutation updates a table's address and/or mentor flag
	ApplyMutation(ctx context.Context, eventID string, table int, m *dto.StatusMutation) (*dto.LighthouseSnapshot, error)
	// SetAnnouncement sets a table's announcement flag
	SetAnnouncement(ctx context.Context, eventID string, table int, flag domain.Flag) (*dto.LighthouseSnapshot, error)
	// SetMentorStatus drives the mentor request of the team at a table
	SetMentorStatus(ctx context.Context, eventID string, table int, status domain.MentorStatus) (*MentorResult, error)
	// ListMentorRequests lists an event's requests, newest first
	ListMentorRequests(ctx context.Context, eventID string, status *domain.MentorStatus) ([]dto.MentorRequestResponse, error)
}

// StatusServiceConfig configures the status service
type StatusServiceConfig struct {
	FloodScope FloodScope
	Publisher  StatusPublisher
	Logger     *logger.Logger
}

type statusService struct {
	stores     *repository.Stores
	floodScope FloodScope
	publisher  StatusPublisher
	log        *logger.Logger
	now        func() time.Time
}

// NewStatusService creates a new StatusService
func NewStatusService(stores *repository.Stores, cfg *StatusServiceConfig) StatusService {
	if cfg == nil {
		cfg = &StatusServiceConfig{}
	}
	s := &statusService{
		stores:     stores,
		floodScope: cfg.FloodScope,
		publisher:  cfg.Publisher,
		log:        cfg.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.floodScope == "" {
		s.floodScope = FloodScopeEvent
	}
	if s.publisher == nil {
		s.publisher = NoopStatusPublisher{}
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

func (s *statusService) findTable(ctx context.Context, eventID string, number int) (*domain.Table, error) {
	table, err := s.stores.Tables.ForEvent(eventID).Where("number", number).First(ctx)
	if errors.Is(err, scoped.ErrNotFound) {
		return nil, domain.ErrTableNotFound
	}
	return table, err
}

func (s *statusService) findLighthouse(ctx context.Context, eventID string, table *domain.Table) (*domain.LightHouse, error) {
	lh, err := s.stores.LightHouses.ForEvent(eventID).Where("table_id", table.ID).First(ctx)
	if errors.Is(err, scoped.ErrNotFound) {
		return nil, nil
	}
	return lh, err
}

// updateLighthouse creates the table's lighthouse on first use and applies set
func (s *statusService) updateLighthouse(ctx context.Context, eventID string, table *domain.Table, set map[string]any) (*domain.LightHouse, error) {
	var updated *domain.LightHouse
	err := s.stores.Tx.InTx(ctx, "lighthouse:"+table.ID, func(ctx context.Context) error {
		lighthouses := s.stores.LightHouses.ForEvent(eventID)

		lh, err := s.findLighthouse(ctx, eventID, table)
		if err != nil {
			return err
		}
		if lh == nil {
			lh = domain.NewLightHouse(table)
			if err := lighthouses.Create(ctx, lh); err != nil {
				return fmt.Errorf("create lighthouse: %w", err)
			}
		}

		set["updated_at"] = s.now()
		if _, err := lighthouses.Where("id", lh.ID).Update(ctx, set); err != nil {
			return fmt.Errorf("update lighthouse: %w", err)
		}

		updated, err = lighthouses.Get(ctx, lh.ID)
		return err
	})
	return updated, err
}

func (s *statusService) Snapshot(ctx context.Context, eventID string, number int) (*dto.LighthouseSnapshot, error) {
	table, err := s.findTable(ctx, eventID, number)
	if errors.Is(err, domain.ErrTableNotFound) {
		snap := dto.NewLighthouseSnapshot(number, nil)
		return &snap, nil
	}
	if err != nil {
		return nil, err
	}

	lh, err := s.findLighthouse(ctx, eventID, table)
	if err != nil {
		return nil, err
	}
	snap := dto.NewLighthouseSnapshot(number, lh)
	return &snap, nil
}

func (s *statusService) SnapshotAll(ctx context.Context, eventID string) ([]dto.LighthouseSnapshot, error) {
	lighthouses, err := s.stores.LightHouses.ForEvent(eventID).All(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := s.stores.Tables.ForEvent(eventID).All(ctx)
	if err != nil {
		return nil, err
	}

	numbers := make(map[string]int, len(tables))
	for _, t := range tables {
		numbers[t.ID] = t.Number
	}

	snaps := make([]dto.LighthouseSnapshot, 0, len(lighthouses))
	for _, lh := range lighthouses {
		number, ok := numbers[lh.TableID]
		if !ok {
			continue
		}
		snaps = append(snaps, dto.NewLighthouseSnapshot(number, lh))
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Table < snaps[j].Table })
	return snaps, nil
}

func (s *statusService) ApplyMutation(ctx context.Context, eventID string, number int, m *dto.StatusMutation) (*dto.LighthouseSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "status.apply_mutation")
	defer span.End()
	span.SetAttributes(telemetry.EventIDAttr(eventID), telemetry.TableAttr(number))

	if m == nil || m.IsEmpty() {
		return nil, ErrEmptyMutation
	}

	set := make(map[string]any, 3)
	if m.IPAddress != nil {
		switch {
		case *m.IPAddress == "":
			set["ip_address"] = nil
		case net.ParseIP(*m.IPAddress) == nil:
			return nil, fmt.Errorf("%w: %q", ErrInvalidIPAddress, *m.IPAddress)
		default:
			set["ip_address"] = *m.IPAddress
		}
	}
	if m.MentorRequested != nil {
		if !m.MentorRequested.IsValid() {
			return nil, domain.ErrInvalidFlag
		}
		set["mentor_requested"] = *m.MentorRequested
	}

	table, err := s.findTable(ctx, eventID, number)
	if err != nil {
		return nil, err
	}
	lh, err := s.updateLighthouse(ctx, eventID, table, set)
	if err != nil {
		return nil, err
	}

	snap := dto.NewLighthouseSnapshot(number, lh)
	s.publishLighthouse(ctx, eventID, &snap)
	return &snap, nil
}

func (s *statusService) SetAnnouncement(ctx context.Context, eventID string, number int, flag domain.Flag) (*dto.LighthouseSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "status.set_announcement")
	defer span.End()
	span.SetAttributes(telemetry.EventIDAttr(eventID), telemetry.TableAttr(number), telemetry.StatusAttr(flag.String()))

	if !flag.IsValid() {
		return nil, domain.ErrInvalidFlag
	}
	table, err := s.findTable(ctx, eventID, number)
	if err != nil {
		return nil, err
	}
	lh, err := s.updateLighthouse(ctx, eventID, table, map[string]any{"announcement_pending": flag})
	if err != nil {
		return nil, err
	}

	snap := dto.NewLighthouseSnapshot(number, lh)
	s.publishLighthouse(ctx, eventID, &snap)
	return &snap, nil
}

func (s *statusService) ListMentorRequests(ctx context.Context, eventID string, status *domain.MentorStatus) ([]dto.MentorRequestResponse, error) {
	q := s.stores.MentorRequests.ForEvent(eventID).OrderBy("created_at", true).OrderBy("id", true)
	if status != nil {
		q = q.Where("status", *status)
	}
	requests, err := q.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.MentorRequestResponse, len(requests))
	for i, r := range requests {
		out[i] = dto.MentorRequestResponse{
			ID:        r.ID,
			TeamID:    r.TeamID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
		}
	}
	return out, nil
}

func (s *statusService) publishLighthouse(ctx context.Context, eventID string, snap *dto.LighthouseSnapshot) {
	s.publisher.Publish(ctx, &dto.StatusEvent{
		EventType:  dto.EventTypeLighthouseUpdated,
		EventID:    eventID,
		Table:      snap.Table,
		Lighthouse: snap,
		Timestamp:  s.now(),
	})
	s.log.DebugContext(ctx, "lighthouse updated",
		zap.Int("table", snap.Table),
		zap.Int("mentor_requested", int(snap.MentorRequested)),
		zap.Int("announcement_pending", int(snap.AnnouncementPending)),
	)
}
