package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/scoped"
)

// Stores bundles every store the portal uses
type Stores struct {
	Events          EventRepository
	Tables          *scoped.Store[*domain.Table]
	Teams           *scoped.Store[*domain.Team]
	LightHouses     *scoped.Store[*domain.LightHouse]
	MentorRequests  *scoped.Store[*domain.MentorHelpRequest]
	Hardware        *scoped.Store[*domain.Hardware]
	HardwareDevices *scoped.Store[*domain.HardwareDevice]
	Workshops       *scoped.Store[*domain.Workshop]
	Tx              scoped.TxRunner
}

// NewPostgresStores wires every store to PostgreSQL
func NewPostgresStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Events:          NewPostgresEventRepository(pool),
		Tables:          scoped.New[*domain.Table](NewPostgresBackend(pool, TableSchema)),
		Teams:           scoped.New[*domain.Team](NewPostgresBackend(pool, TeamSchema)),
		LightHouses:     scoped.New[*domain.LightHouse](NewPostgresBackend(pool, LightHouseSchema)),
		MentorRequests:  scoped.New[*domain.MentorHelpRequest](NewPostgresBackend(pool, MentorRequestSchema)),
		Hardware:        scoped.New[*domain.Hardware](NewPostgresBackend(pool, HardwareSchema)),
		HardwareDevices: scoped.New[*domain.HardwareDevice](NewPostgresBackend(pool, HardwareDeviceSchema)),
		Workshops:       scoped.New[*domain.Workshop](NewPostgresBackend(pool, WorkshopSchema)),
		Tx:              NewPostgresTxRunner(pool),
	}
}

// NewMemoryStores wires every store to process memory
func NewMemoryStores() *Stores {
	return &Stores{
		Events:          NewMemoryEventRepository(),
		Tables:          scoped.New[*domain.Table](NewMemoryBackend(TableSchema)),
		Teams:           scoped.New[*domain.Team](NewMemoryBackend(TeamSchema)),
		LightHouses:     scoped.New[*domain.LightHouse](NewMemoryBackend(LightHouseSchema)),
		MentorRequests:  scoped.New[*domain.MentorHelpRequest](NewMemoryBackend(MentorRequestSchema)),
		Hardware:        scoped.New[*domain.Hardware](NewMemoryBackend(HardwareSchema)),
		HardwareDevices: scoped.New[*domain.HardwareDevice](NewMemoryBackend(HardwareDeviceSchema)),
		Workshops:       scoped.New[*domain.Workshop](NewMemoryBackend(WorkshopSchema)),
		Tx:              NewMemoryTxRunner(),
	}
}
