package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hackportal/portal/internal/scoped"
)

// MemoryBackend keeps records in process. Rows are deep-copied on the way
// in and out so callers never share state with the store.
type MemoryBackend[T scoped.Entity] struct {
	mu     sync.RWMutex
	schema *Schema[T]
	rows   map[string]T
	order  []string
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend[T scoped.Entity](schema *Schema[T]) *MemoryBackend[T] {
	return &MemoryBackend[T]{
		schema: schema,
		rows:   make(map[string]T),
	}
}

// Find returns matching rows in insertion order unless sorted
func (m *MemoryBackend[T]) Find(_ context.Context, c scoped.Criteria) ([]T, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched, err := m.match(c)
	if err != nil {
		return nil, err
	}
	if err := m.sort(matched, c.Orders); err != nil {
		return nil, err
	}
	if c.Limit > 0 && len(matched) > c.Limit {
		matched = matched[:c.Limit]
	}

	out := make([]T, len(matched))
	for i, row := range matched {
		out[i] = m.schema.Clone(row)
	}
	return out, nil
}

// Count returns the number of matching rows
func (m *MemoryBackend[T]) Count(_ context.Context, c scoped.Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched, err := m.match(c)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Insert stores a copy of row
func (m *MemoryBackend[T]) Insert(_ context.Context, row T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := row.GetID()
	if _, exists := m.rows[id]; exists {
		return fmt.Errorf("%s: duplicate id %s", m.schema.Table, id)
	}
	m.rows[id] = m.schema.Clone(row)
	m.order = append(m.order, id)
	return nil
}

// Update applies set to matching rows
func (m *MemoryBackend[T]) Update(_ context.Context, c scoped.Criteria, set map[string]any) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	setters := make([]func(T) error, 0, len(set))
	for name, value := range set {
		col, err := m.schema.column(name)
		if err != nil {
			return 0, err
		}
		if col.Set == nil {
			return 0, fmt.Errorf("%s: column %q is read-only", m.schema.Table, name)
		}
		v := scoped.Normalize(value)
		setters = append(setters, func(row T) error { return col.Set(row, v) })
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matched, err := m.match(c)
	if err != nil {
		return 0, err
	}

	// apply to copies first so a failing setter leaves the store untouched
	updated := make([]T, len(matched))
	for i, row := range matched {
		cp := m.schema.Clone(row)
		for _, apply := range setters {
			if err := apply(cp); err != nil {
				return 0, fmt.Errorf("%s: %w", m.schema.Table, err)
			}
		}
		updated[i] = cp
	}
	for _, row := range updated {
		m.rows[row.GetID()] = row
	}
	return len(updated), nil
}

// Delete removes matching rows
func (m *MemoryBackend[T]) Delete(_ context.Context, c scoped.Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matched, err := m.match(c)
	if err != nil {
		return 0, err
	}
	gone := make(map[string]bool, len(matched))
	for _, row := range matched {
		id := row.GetID()
		gone[id] = true
		delete(m.rows, id)
	}
	m.order = slices.DeleteFunc(m.order, func(id string) bool { return gone[id] })
	return len(matched), nil
}

// match must be called with the lock held
func (m *MemoryBackend[T]) match(c scoped.Criteria) ([]T, error) {
	out := make([]T, 0)
	for _, id := range m.order {
		row := m.rows[id]
		if !c.AllEvents && row.GetEventID() != c.EventID {
			continue
		}
		ok, err := m.matchConds(row, c.Conds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *MemoryBackend[T]) matchConds(row T, conds []scoped.Cond) (bool, error) {
	for _, cond := range conds {
		col, err := m.schema.column(cond.Field)
		if err != nil {
			return false, err
		}
		got := col.Get(row)

		var ok bool
		switch cond.Op {
		case scoped.OpEq:
			ok = compareValues(got, scoped.Normalize(cond.Value)) == 0
		case scoped.OpNeq:
			ok = compareValues(got, scoped.Normalize(cond.Value)) != 0
		case scoped.OpLt:
			ok = got != nil && compareValues(got, scoped.Normalize(cond.Value)) < 0
		case scoped.OpGt:
			ok = got != nil && compareValues(got, scoped.Normalize(cond.Value)) > 0
		case scoped.OpIsNull:
			ok = got == nil
		case scoped.OpNotNull:
			ok = got != nil
		case scoped.OpIn:
			list, err := scoped.NormalizeList(cond.Value)
			if err != nil {
				return false, err
			}
			ok = slices.ContainsFunc(list, func(v any) bool { return got != nil && compareValues(got, v) == 0 })
		default:
			return false, fmt.Errorf("unsupported operator %q", cond.Op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (m *MemoryBackend[T]) sort(rows []T, orders []scoped.Order) error {
	if len(orders) == 0 {
		return nil
	}
	cols := make([]*Column[T], len(orders))
	for i, o := range orders {
		col, err := m.schema.column(o.Field)
		if err != nil {
			return err
		}
		cols[i] = col
	}
	slices.SortStableFunc(rows, func(a, b T) int {
		for i, o := range orders {
			r := compareValues(cols[i].Get(a), cols[i].Get(b))
			if o.Desc {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
		return 0
	})
	return nil
}

// compareValues orders normalized values; nil sorts first and mismatched
// types compare by their formatted text
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
