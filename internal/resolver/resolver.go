// Package resolver works out which event a request targets.
//
// Strategies run in a fixed priority order and the first one that yields
// an existing event wins. A strategy that finds a malformed or unknown id
// does not stop resolution; the next strategy gets its turn.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hackportal/portal/internal/domain"
)

// DefaultHeader carries an explicit event id
const DefaultHeader = "X-Event-ID"

// QueryParam carries an explicit event id in the query string
const QueryParam = "event"

// Strategy names the source an event was resolved from
type Strategy string

const (
	StrategyPath      Strategy = "path"
	StrategyHeader    Strategy = "header"
	StrategySubdomain Strategy = "subdomain"
	StrategyQuery     Strategy = "query"
	StrategyActive    Strategy = "active"
)

// EventFinder is the lookup the resolver needs. GetByID returns nil, nil
// when the event does not exist.
type EventFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	ListActive(ctx context.Context) ([]*domain.Event, error)
}

// Request is the part of an HTTP request resolution looks at
type Request struct {
	Path   string
	Header http.Header
	Query  url.Values
	Host   string
}

// FromHTTP builds a Request from an incoming HTTP request
func FromHTTP(r *http.Request) Request {
	return Request{
		Path:   r.URL.Path,
		Header: r.Header,
		Query:  r.URL.Query(),
		Host:   r.Host,
	}
}

// Resolution is a successfully resolved event
type Resolution struct {
	Event    *domain.Event
	Strategy Strategy
}

// Resolver resolves events from requests
type Resolver struct {
	finder EventFinder
	header string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithHeader overrides the header name used by the header strategy
func WithHeader(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.header = name
		}
	}
}

// New creates a Resolver
func New(finder EventFinder, opts ...Option) *Resolver {
	r := &Resolver{finder: finder, header: DefaultHeader}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Header returns the header name the resolver reads
func (r *Resolver) Header() string {
	return r.header
}

// attempt records what a strategy saw when it declined
type attempt struct {
	strategy Strategy
	reason   Reason
	value    string
}

type strategyFunc func(ctx context.Context, req Request) (*domain.Event, *attempt, error)

// Resolve runs every strategy in order. Store failures abort with an
// error; if nothing matches the error is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	strategies := []struct {
		name Strategy
		fn   strategyFunc
	}{
		{StrategyPath, r.fromPath},
		{StrategyHeader, r.fromHeader},
		{StrategySubdomain, r.fromSubdomain},
		{StrategyQuery, r.fromQuery},
		{StrategyActive, r.fromActive},
	}

	var attempts []attempt
	for _, s := range strategies {
		event, att, err := s.fn(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("resolve event by %s: %w", s.name, err)
		}
		if event != nil {
			return &Resolution{Event: event, Strategy: s.name}, nil
		}
		if att != nil {
			attempts = append(attempts, *att)
		}
	}
	return nil, failure(attempts, r.header)
}

// ResolveStrict only honours the header
func (r *Resolver) ResolveStrict(ctx context.Context, req Request) (*Resolution, error) {
	event, att, err := r.fromHeader(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve event by header: %w", err)
	}
	if event != nil {
		return &Resolution{Event: event, Strategy: StrategyHeader}, nil
	}
	if att == nil {
		return nil, &ResolutionError{
			Reason:  ReasonMissing,
			Summary: "Event context required",
			Detail:  fmt.Sprintf("the %s header is required", r.header),
		}
	}
	return nil, failure([]attempt{*att}, r.header)
}

func (r *Resolver) lookup(ctx context.Context, strategy Strategy, raw string) (*domain.Event, *attempt, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &attempt{strategy: strategy, reason: ReasonMalformed, value: raw}, nil
	}
	event, err := r.finder.GetByID(ctx, id.String())
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return nil, &attempt{strategy: strategy, reason: ReasonNotFound, value: raw}, nil
	}
	return event, nil, nil
}

// fromPath takes the segment right after the first "events" segment
func (r *Resolver) fromPath(ctx context.Context, req Request) (*domain.Event, *attempt, error) {
	segments := strings.Split(strings.Trim(req.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "events" {
			return r.lookup(ctx, StrategyPath, segments[i+1])
		}
	}
	return nil, nil, nil
}

func (r *Resolver) fromHeader(ctx context.Context, req Request) (*domain.Event, *attempt, error) {
	if req.Header == nil {
		return nil, nil, nil
	}
	return r.lookup(ctx, StrategyHeader, req.Header.Get(r.header))
}

// fromSubdomain is reserved for host-based routing and never matches
func (r *Resolver) fromSubdomain(context.Context, Request) (*domain.Event, *attempt, error) {
	return nil, nil, nil
}

func (r *Resolver) fromQuery(ctx context.Context, req Request) (*domain.Event, *attempt, error) {
	if req.Query == nil {
		return nil, nil, nil
	}
	return r.lookup(ctx, StrategyQuery, req.Query.Get(QueryParam))
}

// fromActive falls back to the single active event. None or several
// active events decline.
func (r *Resolver) fromActive(ctx context.Context, _ Request) (*domain.Event, *attempt, error) {
	active, err := r.finder.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}
	switch len(active) {
	case 1:
		return active[0], nil, nil
	case 0:
		return nil, nil, nil
	default:
		return nil, &attempt{strategy: StrategyActive, reason: ReasonAmbiguous, value: fmt.Sprint(len(active))}, nil
	}
}
