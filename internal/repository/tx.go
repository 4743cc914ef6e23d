package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and an open transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// conn returns the transaction carried by ctx, or the pool
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// PostgresTxRunner runs work inside a transaction holding a
// transaction-scoped advisory lock on the key
type PostgresTxRunner struct {
	pool *pgxpool.Pool
}

// NewPostgresTxRunner creates a PostgresTxRunner
func NewPostgresTxRunner(pool *pgxpool.Pool) *PostgresTxRunner {
	return &PostgresTxRunner{pool: pool}
}

// InTx begins a transaction, takes the advisory lock and commits if fn
// succeeds. A nested call reuses the outer transaction.
func (r *PostgresTxRunner) InTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		if key != "" {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
				return fmt.Errorf("failed to lock %s: %w", key, err)
			}
		}
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if key != "" {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return fmt.Errorf("failed to lock %s: %w", key, err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MemoryTxRunner serializes work per key. It gives no rollback; the
// memory backend is for development and tests.
type MemoryTxRunner struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryTxRunner creates a MemoryTxRunner
func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{locks: make(map[string]*sync.Mutex)}
}

type memoryTxKey struct{}

// InTx runs fn while holding the key's lock
func (r *MemoryTxRunner) InTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	held, _ := ctx.Value(memoryTxKey{}).(map[string]bool)
	if held[key] {
		return fn(ctx)
	}

	r.mu.Lock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	next := make(map[string]bool, len(held)+1)
	for k := range held {
		next[k] = true
	}
	next[key] = true
	return fn(context.WithValue(ctx, memoryTxKey{}, next))
}
