package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/scoped"
	"github.com/hackportal/portal/pkg/telemetry"
)

// MentorAction is what a mentor status change did
type MentorAction string

const (
	// MentorCreated opened a new request row
	MentorCreated MentorAction = "created"
	// MentorUpdated overwrote the latest row in place
	MentorUpdated MentorAction = "updated"
	// MentorBlocked refused a first request because another is still open
	MentorBlocked MentorAction = "blocked"
)

// MentorResult reports the outcome of SetMentorStatus
type MentorResult struct {
	Action   MentorAction
	Request  *domain.MentorHelpRequest
	Snapshot *dto.LighthouseSnapshot
}

// SetMentorStatus applies a mentor status to the team seated at a table:
//
//   - requested after a resolved request opens a new request
//   - requested with no history opens one only when nothing is open in
//     the flood scope; otherwise the call is blocked
//   - any other case overwrites the latest request in place
//
// Non-requested statuses with no history fail with ErrMentorRequestNotFound.
// The lighthouse mentor flag mirrors the request.
func (s *statusService) SetMentorStatus(ctx context.Context, eventID string, number int, status domain.MentorStatus) (*MentorResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "status.set_mentor")
	defer span.End()
	span.SetAttributes(telemetry.EventIDAttr(eventID), telemetry.TableAttr(number), telemetry.StatusAttr(string(status)))

	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMentorStatus, status)
	}

	table, err := s.findTable(ctx, eventID, number)
	if err != nil {
		return nil, err
	}
	team, err := s.stores.Teams.ForEvent(eventID).Where("table_id", table.ID).OrderBy("created_at", false).First(ctx)
	if errors.Is(err, scoped.ErrNotFound) {
		return nil, domain.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}

	result := &MentorResult{}
	err = s.stores.Tx.InTx(ctx, "mentor:"+eventID, func(ctx context.Context) error {
		requests := s.stores.MentorRequests.ForEvent(eventID)

		latest, err := requests.Where("team_id", team.ID).OrderBy("created_at", true).OrderBy("id", true).First(ctx)
		if errors.Is(err, scoped.ErrNotFound) {
			latest = nil
		} else if err != nil {
			return err
		}

		switch {
		case latest == nil && status != domain.MentorRequested:
			return domain.ErrMentorRequestNotFound

		case latest == nil:
			open, err := s.openRequests(ctx, eventID, team.ID)
			if err != nil {
				return err
			}
			if open > 0 {
				result.Action = MentorBlocked
				return nil
			}
			result.Request = domain.NewMentorHelpRequest(team, s.now())
			result.Action = MentorCreated
			if err := requests.Create(ctx, result.Request); err != nil {
				return err
			}

		case !latest.Status.CanTransitionTo(status):
			// requested after resolved: a new help cycle
			result.Request = domain.NewMentorHelpRequest(team, s.now())
			result.Action = MentorCreated
			if err := requests.Create(ctx, result.Request); err != nil {
				return err
			}

		default:
			now := s.now()
			if _, err := requests.Where("id", latest.ID).Update(ctx, map[string]any{
				"status":     status,
				"updated_at": now,
			}); err != nil {
				return err
			}
			latest.Status = status
			latest.UpdatedAt = now
			result.Request = latest
			result.Action = MentorUpdated
		}

		lh, err := s.updateLighthouse(ctx, eventID, table, map[string]any{
			"mentor_requested": status.LighthouseFlag(),
		})
		if err != nil {
			return err
		}
		snap := dto.NewLighthouseSnapshot(number, lh)
		result.Snapshot = &snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int("table", number),
		zap.String("team_id", team.ID),
		zap.String("status", string(status)),
	}
	if result.Action == MentorBlocked {
		s.log.InfoContext(ctx, "mentor request blocked: another request is still open",
			append(fields, zap.String("flood_scope", string(s.floodScope)))...)
		return result, nil
	}
	s.log.DebugContext(ctx, "mentor request "+string(result.Action), fields...)

	eventType := dto.EventTypeMentorRequestUpdated
	if result.Action == MentorCreated {
		eventType = dto.EventTypeMentorRequestCreated
	}
	s.publisher.Publish(ctx, &dto.StatusEvent{
		EventType:       eventType,
		EventID:         eventID,
		Table:           number,
		MentorRequestID: result.Request.ID,
		TeamID:          team.ID,
		MentorStatus:    result.Request.Status,
		Timestamp:       s.now(),
	})
	s.publishLighthouse(ctx, eventID, result.Snapshot)
	return result, nil
}

// openRequests counts unresolved requests in the configured flood scope
func (s *statusService) openRequests(ctx context.Context, eventID, teamID string) (int, error) {
	q := s.stores.MentorRequests.ForEvent(eventID).WhereOp("status", scoped.OpNeq, domain.MentorResolved)
	if s.floodScope == FloodScopeTeam {
		q = q.Where("team_id", teamID)
	}
	return q.Count(ctx)
}
