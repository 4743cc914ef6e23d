package scoped

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"
)

var (
	// ErrEventScoping is returned when a query is executed without having
	// been bound to an event or explicitly opened to all events.
	ErrEventScoping = errors.New("event scoping: query was not bound to an event")
	// ErrCrossEvent is returned when a write names a different event than
	// the one the query is bound to.
	ErrCrossEvent = errors.New("event scoping: record belongs to another event")
	ErrNotFound   = errors.New("record not found")
	ErrNoID       = errors.New("record has no id")
)

// Op is a comparison operator in a filter condition
type Op string

const (
	OpEq      Op = "="
	OpNeq     Op = "<>"
	OpLt      Op = "<"
	OpGt      Op = ">"
	OpIn      Op = "IN"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

// Cond is one filter condition on a column
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Order is one sort key
type Order struct {
	Field string
	Desc  bool
}

// Criteria is the backend-facing description of a query
type Criteria struct {
	EventID   string
	AllEvents bool
	Conds     []Cond
	Orders    []Order
	Limit     int
}

// Validate rejects criteria that carry no event scope
func (c Criteria) Validate() error {
	if c.AllEvents {
		return nil
	}
	if c.EventID == "" {
		return ErrEventScoping
	}
	return nil
}

func (c Criteria) clone() Criteria {
	c.Conds = slices.Clone(c.Conds)
	c.Orders = slices.Clone(c.Orders)
	return c
}

// Normalize reduces named scalar types (domain flags and statuses) to
// their underlying kind so backends compare and encode plain values.
// Nil pointers become nil, other pointers are dereferenced.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, int, int64, bool, float64, time.Time:
		return x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int(rv.Uint())
	case reflect.Bool:
		return rv.Bool()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// NormalizeList flattens an IN operand into normalized values
func NormalizeList(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("IN operand must be a slice, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = Normalize(rv.Index(i).Interface())
	}
	return out, nil
}
