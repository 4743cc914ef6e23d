package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackportal/portal/internal/domain"
)

const eventColumns = `id, name, slug, starts_at, ends_at, is_active, created_at, updated_at`

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	event := &domain.Event{}
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Slug,
		&event.StartsAt,
		&event.EndsAt,
		&event.IsActive,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Create creates a new event. A new active event takes over from the
// previous one in the same transaction.
func (r *PostgresEventRepository) Create(ctx context.Context, event *domain.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if event.IsActive {
		if _, err := tx.Exec(ctx, `UPDATE events SET is_active = FALSE, updated_at = $1 WHERE is_active`, time.Now().UTC()); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO events (id, name, slug, starts_at, ends_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, query,
		event.ID,
		event.Name,
		event.Slug,
		event.StartsAt,
		event.EndsAt,
		event.IsActive,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID retrieves an event by ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

// GetBySlug retrieves an event by slug
func (r *PostgresEventRepository) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE slug = $1`
	event, err := scanEvent(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

// List retrieves events with pagination and filters
func (r *PostgresEventRepository) List(ctx context.Context, page, limit int, isActive *bool, search string) ([]*domain.Event, int, error) {
	whereClause := "WHERE TRUE"
	args := []interface{}{}
	argIndex := 1

	if isActive != nil {
		whereClause += fmt.Sprintf(" AND is_active = $%d", argIndex)
		args = append(args, *isActive)
		argIndex++
	}

	if search != "" {
		whereClause += fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+search+"%")
		argIndex++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", whereClause)
	var totalCount int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY starts_at DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, eventColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, totalCount, rows.Err()
}

// ListActive returns every event flagged active
func (r *PostgresEventRepository) ListActive(ctx context.Context) ([]*domain.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0, 1)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Activate clears the active flag everywhere and sets it on id, in one
// transaction. The partial unique index on is_active backs this up.
func (r *PostgresEventRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE events SET is_active = FALSE, updated_at = $1 WHERE is_active AND id <> $2`, now, id); err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `UPDATE events SET is_active = TRUE, updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}

	return tx.Commit(ctx)
}

// ExistsBySlug checks if an event exists with the given slug
func (r *PostgresEventRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM events WHERE slug = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, slug).Scan(&exists)
	return exists, err
}
