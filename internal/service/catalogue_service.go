package service

import (
	"context"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/repository"
	"github.com/hackportal/portal/internal/scoped"
)

// CatalogueService lists the event-owned reference data. Every method
// works on the event bound to ctx.
type CatalogueService interface {
	ListTables(ctx context.Context) ([]*domain.Table, error)
	ListTeams(ctx context.Context) ([]*domain.Team, error)
	ListHardware(ctx context.Context) ([]*domain.Hardware, error)
	ListAvailableDevices(ctx context.Context, hardwareID string) ([]*domain.HardwareDevice, error)
	ListWorkshops(ctx context.Context) ([]*domain.Workshop, error)
}

type catalogueService struct {
	stores *repository.Stores
}

// NewCatalogueService creates a new CatalogueService
func NewCatalogueService(stores *repository.Stores) CatalogueService {
	return &catalogueService{stores: stores}
}

func (s *catalogueService) ListTables(ctx context.Context) ([]*domain.Table, error) {
	q, err := s.stores.Tables.ForContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.OrderBy("number", false).All(ctx)
}

func (s *catalogueService) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	q, err := s.stores.Teams.ForContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.OrderBy("name", false).All(ctx)
}

func (s *catalogueService) ListHardware(ctx context.Context) ([]*domain.Hardware, error) {
	q, err := s.stores.Hardware.ForContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.OrderBy("name", false).All(ctx)
}

func (s *catalogueService) ListAvailableDevices(ctx context.Context, hardwareID string) ([]*domain.HardwareDevice, error) {
	q, err := s.stores.HardwareDevices.ForContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.Where("hardware_id", hardwareID).
		WhereOp("lent_to_team_id", scoped.OpIsNull, nil).
		OrderBy("serial", false).
		All(ctx)
}

func (s *catalogueService) ListWorkshops(ctx context.Context) ([]*domain.Workshop, error) {
	q, err := s.stores.Workshops.ForContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.OrderBy("starts_at", false).All(ctx)
}
