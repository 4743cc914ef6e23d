// Package scoped provides event-isolated access to event-owned records.
//
// Queries come in two shapes. Query is an unscoped builder with no way
// to execute it. Scoped is produced only by ForEvent or AllEvents and is
// the only type with execution methods, so forgetting to pick an event
// is a compile error rather than a data leak. A zero Scoped value still
// fails closed at run time with ErrEventScoping.
package scoped

import (
	"context"
	"fmt"

	"github.com/hackportal/portal/internal/eventctx"
)

// Entity is a record owned by exactly one event
type Entity interface {
	GetID() string
	GetEventID() string
	SetEventID(id string)
}

// Backend is the persistence collaborator behind a Store. Implementations
// must call Criteria.Validate before touching data.
type Backend[T Entity] interface {
	Find(ctx context.Context, c Criteria) ([]T, error)
	Count(ctx context.Context, c Criteria) (int, error)
	Insert(ctx context.Context, row T) error
	Update(ctx context.Context, c Criteria, set map[string]any) (int, error)
	Delete(ctx context.Context, c Criteria) (int, error)
}

// TxRunner runs fn atomically. Calls that share a key are serialized
// against each other for the duration of fn.
type TxRunner interface {
	InTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Store is the entry point for querying one record type
type Store[T Entity] struct {
	backend Backend[T]
}

// New creates a store over a backend
func New[T Entity](backend Backend[T]) *Store[T] {
	return &Store[T]{backend: backend}
}

// ForEvent returns a query restricted to records of one event.
// An empty event ID yields a query that fails with ErrEventScoping.
func (s *Store[T]) ForEvent(eventID string) Scoped[T] {
	return s.Query().ForEvent(eventID)
}

// AllEvents returns a query across every event. Only administrative code
// paths should use it.
func (s *Store[T]) AllEvents() Scoped[T] {
	return s.Query().AllEvents()
}

// ForContext binds to the event carried by ctx
func (s *Store[T]) ForContext(ctx context.Context) (Scoped[T], error) {
	event, ok := eventctx.Event(ctx)
	if !ok {
		return Scoped[T]{}, ErrEventScoping
	}
	return s.ForEvent(event.ID), nil
}

// Query starts an unscoped builder
func (s *Store[T]) Query() Query[T] {
	return Query[T]{backend: s.backend}
}

// Query is an unscoped builder. It can be refined but not executed.
type Query[T Entity] struct {
	backend Backend[T]
	crit    Criteria
}

// Where adds an equality condition
func (q Query[T]) Where(field string, value any) Query[T] {
	return q.WhereOp(field, OpEq, value)
}

// WhereOp adds a condition with an explicit operator
func (q Query[T]) WhereOp(field string, op Op, value any) Query[T] {
	q.crit = q.crit.clone()
	q.crit.Conds = append(q.crit.Conds, Cond{Field: field, Op: op, Value: value})
	return q
}

// OrderBy appends a sort key
func (q Query[T]) OrderBy(field string, desc bool) Query[T] {
	q.crit = q.crit.clone()
	q.crit.Orders = append(q.crit.Orders, Order{Field: field, Desc: desc})
	return q
}

// Limit caps the number of rows returned; zero means no limit
func (q Query[T]) Limit(n int) Query[T] {
	q.crit = q.crit.clone()
	q.crit.Limit = n
	return q
}

// ForEvent binds the builder to an event
func (q Query[T]) ForEvent(eventID string) Scoped[T] {
	crit := q.crit.clone()
	crit.EventID = eventID
	crit.AllEvents = false
	return Scoped[T]{backend: q.backend, crit: crit, bound: eventID != ""}
}

// AllEvents opens the builder to every event
func (q Query[T]) AllEvents() Scoped[T] {
	crit := q.crit.clone()
	crit.EventID = ""
	crit.AllEvents = true
	return Scoped[T]{backend: q.backend, crit: crit, bound: true}
}

// Scoped is an executable query with an explicit event scope
type Scoped[T Entity] struct {
	backend Backend[T]
	crit    Criteria
	bound   bool
}

// IsScoped reports whether the query may execute
func (q Scoped[T]) IsScoped() bool {
	return q.bound && q.backend != nil
}

// EventID returns the bound event, empty for AllEvents
func (q Scoped[T]) EventID() string {
	return q.crit.EventID
}

// Criteria returns a copy of the query's criteria
func (q Scoped[T]) Criteria() Criteria {
	return q.crit.clone()
}

// Where adds an equality condition
func (q Scoped[T]) Where(field string, value any) Scoped[T] {
	return q.WhereOp(field, OpEq, value)
}

// WhereOp adds a condition with an explicit operator
func (q Scoped[T]) WhereOp(field string, op Op, value any) Scoped[T] {
	q.crit = q.crit.clone()
	q.crit.Conds = append(q.crit.Conds, Cond{Field: field, Op: op, Value: value})
	return q
}

// OrderBy appends a sort key
func (q Scoped[T]) OrderBy(field string, desc bool) Scoped[T] {
	q.crit = q.crit.clone()
	q.crit.Orders = append(q.crit.Orders, Order{Field: field, Desc: desc})
	return q
}

// Limit caps the number of rows returned; zero means no limit
func (q Scoped[T]) Limit(n int) Scoped[T] {
	q.crit = q.crit.clone()
	q.crit.Limit = n
	return q
}

func (q Scoped[T]) check() error {
	if !q.IsScoped() {
		return ErrEventScoping
	}
	return q.crit.Validate()
}

// All returns every matching record
func (q Scoped[T]) All(ctx context.Context) ([]T, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	return q.backend.Find(ctx, q.crit)
}

// Count returns the number of matching records
func (q Scoped[T]) Count(ctx context.Context) (int, error) {
	if err := q.check(); err != nil {
		return 0, err
	}
	return q.backend.Count(ctx, q.crit)
}

// Exists reports whether any record matches
func (q Scoped[T]) Exists(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// First returns the first matching record or ErrNotFound
func (q Scoped[T]) First(ctx context.Context) (T, error) {
	var zero T
	if err := q.check(); err != nil {
		return zero, err
	}
	rows, err := q.backend.Find(ctx, q.Limit(1).crit)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	return rows[0], nil
}

// Get returns the record with the given id inside the scope
func (q Scoped[T]) Get(ctx context.Context, id string) (T, error) {
	return q.Where("id", id).First(ctx)
}

// Create inserts row into the bound event. An empty EventID is stamped
// with the bound event; a different one is rejected.
func (q Scoped[T]) Create(ctx context.Context, row T) error {
	if err := q.check(); err != nil {
		return err
	}
	if row.GetID() == "" {
		return ErrNoID
	}
	if q.crit.AllEvents {
		if row.GetEventID() == "" {
			return fmt.Errorf("%w: record has no event", ErrEventScoping)
		}
		return q.backend.Insert(ctx, row)
	}
	switch row.GetEventID() {
	case "":
		row.SetEventID(q.crit.EventID)
	case q.crit.EventID:
	default:
		return fmt.Errorf("%w: %s is not %s", ErrCrossEvent, row.GetEventID(), q.crit.EventID)
	}
	return q.backend.Insert(ctx, row)
}

// Update applies set to every matching record and returns how many changed.
// OrderBy and Limit are ignored. The owning event cannot be changed.
func (q Scoped[T]) Update(ctx context.Context, set map[string]any) (int, error) {
	if err := q.check(); err != nil {
		return 0, err
	}
	if _, ok := set["event_id"]; ok {
		return 0, fmt.Errorf("%w: event_id is immutable", ErrCrossEvent)
	}
	if len(set) == 0 {
		return 0, nil
	}
	return q.backend.Update(ctx, q.crit, set)
}

// Delete removes every matching record. OrderBy and Limit are ignored.
func (q Scoped[T]) Delete(ctx context.Context) (int, error) {
	if err := q.check(); err != nil {
		return 0, err
	}
	return q.backend.Delete(ctx, q.crit)
}
