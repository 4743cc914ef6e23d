package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackportal/portal/internal/scoped"
)

// PostgresBackend implements scoped.Backend for one table
type PostgresBackend[T scoped.Entity] struct {
	pool   *pgxpool.Pool
	schema *Schema[T]
}

// NewPostgresBackend creates a PostgresBackend
func NewPostgresBackend[T scoped.Entity](pool *pgxpool.Pool, schema *Schema[T]) *PostgresBackend[T] {
	return &PostgresBackend[T]{pool: pool, schema: schema}
}

// Find selects matching rows
func (b *PostgresBackend[T]) Find(ctx context.Context, c scoped.Criteria) ([]T, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	whereClause, args, err := buildWhere(b.schema, c, 1)
	if err != nil {
		return nil, err
	}
	orderClause, err := buildOrder(b.schema, c.Orders)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s %s%s",
		strings.Join(b.schema.names(), ", "), b.schema.Table, whereClause, orderClause)
	if c.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, c.Limit)
	}

	rows, err := conn(ctx, b.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", b.schema.Table, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		row := b.schema.New()
		if err := rows.Scan(b.schema.scanTargets(row)...); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", b.schema.Table, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count counts matching rows
func (b *PostgresBackend[T]) Count(ctx context.Context, c scoped.Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	whereClause, args, err := buildWhere(b.schema, c, 1)
	if err != nil {
		return 0, err
	}

	var total int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", b.schema.Table, whereClause)
	if err := conn(ctx, b.pool).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: count: %w", b.schema.Table, err)
	}
	return total, nil
}

// Insert writes a new row
func (b *PostgresBackend[T]) Insert(ctx context.Context, row T) error {
	names := b.schema.names()
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, col := range b.schema.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = col.Get(row)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.schema.Table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := conn(ctx, b.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: insert: %w", b.schema.Table, err)
	}
	return nil
}

// Update sets columns on matching rows
func (b *PostgresBackend[T]) Update(ctx context.Context, c scoped.Criteria, set map[string]any) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	// sorted so the generated statement is stable
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, name := range names {
		col, err := b.schema.column(name)
		if err != nil {
			return 0, err
		}
		if col.Set == nil {
			return 0, fmt.Errorf("%s: column %q is read-only", b.schema.Table, name)
		}
		args = append(args, scoped.Normalize(set[name]))
		assignments = append(assignments, fmt.Sprintf("%s = $%d", name, len(args)))
	}

	whereClause, whereArgs, err := buildWhere(b.schema, c, len(args)+1)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s %s", b.schema.Table, strings.Join(assignments, ", "), whereClause)
	result, err := conn(ctx, b.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: update: %w", b.schema.Table, err)
	}
	return int(result.RowsAffected()), nil
}

// Delete removes matching rows
func (b *PostgresBackend[T]) Delete(ctx context.Context, c scoped.Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	whereClause, args, err := buildWhere(b.schema, c, 1)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s %s", b.schema.Table, whereClause)
	result, err := conn(ctx, b.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: delete: %w", b.schema.Table, err)
	}
	return int(result.RowsAffected()), nil
}

// buildWhere renders the criteria as a WHERE clause with placeholders
// numbered from argIndex. Field names are checked against the schema.
func buildWhere[T scoped.Entity](schema *Schema[T], c scoped.Criteria, argIndex int) (string, []any, error) {
	clauses := make([]string, 0, len(c.Conds)+1)
	args := make([]any, 0, len(c.Conds)+1)

	if !c.AllEvents {
		clauses = append(clauses, fmt.Sprintf("event_id = $%d", argIndex))
		args = append(args, c.EventID)
		argIndex++
	}

	for _, cond := range c.Conds {
		if _, err := schema.column(cond.Field); err != nil {
			return "", nil, err
		}

		switch cond.Op {
		case scoped.OpIsNull, scoped.OpNotNull:
			clauses = append(clauses, fmt.Sprintf("%s %s", cond.Field, cond.Op))
		case scoped.OpIn:
			list, err := scoped.NormalizeList(cond.Value)
			if err != nil {
				return "", nil, err
			}
			if len(list) == 0 {
				clauses = append(clauses, "FALSE")
				continue
			}
			placeholders := make([]string, len(list))
			for i, v := range list {
				placeholders[i] = fmt.Sprintf("$%d", argIndex)
				args = append(args, v)
				argIndex++
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", cond.Field, strings.Join(placeholders, ", ")))
		case scoped.OpEq, scoped.OpNeq, scoped.OpLt, scoped.OpGt:
			v := scoped.Normalize(cond.Value)
			if v == nil {
				// comparisons with NULL need IS / IS NOT
				if cond.Op == scoped.OpEq {
					clauses = append(clauses, cond.Field+" IS NULL")
					continue
				}
				if cond.Op == scoped.OpNeq {
					clauses = append(clauses, cond.Field+" IS NOT NULL")
					continue
				}
			}
			op := string(cond.Op)
			if cond.Op == scoped.OpNeq {
				op = "IS DISTINCT FROM"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", cond.Field, op, argIndex))
			args = append(args, v)
			argIndex++
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", cond.Op)
		}
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildOrder[T scoped.Entity](schema *Schema[T], orders []scoped.Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		if _, err := schema.column(o.Field); err != nil {
			return "", err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = o.Field + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
