package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/scoped"
	"github.com/hackportal/portal/pkg/database"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupTestDB(t *testing.T) *database.PostgresDB {
	ctx := context.Background()

	cfg := database.DefaultPostgresConfig()
	cfg.Host = getEnv("POSTGRES_HOST", "localhost")
	cfg.User = getEnv("POSTGRES_USER", "postgres")
	cfg.Password = getEnv("POSTGRES_PASSWORD", "postgres")
	cfg.Database = getEnv("POSTGRES_DB", "hackportal_test")
	cfg.MaxConns = 5
	cfg.MinConns = 1

	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/0001_init.up.sql")
	require.NoError(t, err)
	require.NoError(t, db.Exec(ctx, string(schema)))
	return db
}

func seedEvent(t *testing.T, repo EventRepository, active bool) *domain.Event {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := "test-" + uuid.New().String()
	event := &domain.Event{
		ID: id, Name: "Test " + id, Slug: id,
		StartsAt: now, EndsAt: now.Add(24 * time.Hour),
		IsActive: active, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func cleanupEvents(t *testing.T, db *database.PostgresDB) {
	if err := db.Exec(context.Background(), "DELETE FROM events WHERE id LIKE 'test-%'"); err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
}

func TestPostgresEventRepository_Activate(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()
	defer cleanupEvents(t, db)

	repo := NewPostgresEventRepository(db.Pool())
	ctx := context.Background()

	first := seedEvent(t, repo, true)
	second := seedEvent(t, repo, false)

	require.NoError(t, repo.Activate(ctx, second.ID))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// the partial unique index refuses a second active row
	err = db.Exec(ctx, "UPDATE events SET is_active = TRUE WHERE id = $1", first.ID)
	assert.Error(t, err)

	assert.ErrorIs(t, repo.Activate(ctx, "test-missing"), domain.ErrEventNotFound)
}

func TestPostgresBackend_ScopedQueries(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()
	defer cleanupEvents(t, db)

	stores := NewPostgresStores(db.Pool())
	ctx := context.Background()

	a := seedEvent(t, stores.Events, false)
	b := seedEvent(t, stores.Events, false)

	for _, ev := range []*domain.Event{a, b} {
		table := &domain.Table{ID: "test-" + uuid.New().String(), Number: 1, CreatedAt: time.Now().UTC()}
		require.NoError(t, stores.Tables.ForEvent(ev.ID).Create(ctx, table))
		require.NoError(t, stores.LightHouses.ForEvent(ev.ID).Create(ctx, domain.NewLightHouse(table)))
	}

	rows, err := stores.LightHouses.ForEvent(a.ID).All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].EventID)

	n, err := stores.LightHouses.ForEvent(a.ID).Update(ctx, map[string]any{
		"ip_address":       strPtr("10.0.0.5"),
		"mentor_requested": domain.FlagRequested,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := stores.LightHouses.ForEvent(a.ID).Where("mentor_requested", domain.FlagRequested).First(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.IPAddress)
	assert.Equal(t, "10.0.0.5", *got.IPAddress)

	other, err := stores.LightHouses.ForEvent(b.ID).First(ctx)
	require.NoError(t, err)
	assert.Nil(t, other.IPAddress)
	assert.Equal(t, domain.FlagResolved, other.MentorRequested)

	_, err = stores.LightHouses.ForEvent(b.ID).Where("ip_address", "10.0.0.5").First(ctx)
	assert.ErrorIs(t, err, scoped.ErrNotFound)
}

func TestPostgresTxRunner_RollsBack(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()
	defer cleanupEvents(t, db)

	stores := NewPostgresStores(db.Pool())
	ctx := context.Background()
	ev := seedEvent(t, stores.Events, false)

	err := stores.Tx.InTx(ctx, "test:"+ev.ID, func(ctx context.Context) error {
		table := &domain.Table{ID: "test-" + uuid.New().String(), Number: 7, CreatedAt: time.Now().UTC()}
		if err := stores.Tables.ForEvent(ev.ID).Create(ctx, table); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	n, err := stores.Tables.ForEvent(ev.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
