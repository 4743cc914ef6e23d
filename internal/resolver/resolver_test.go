package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackportal/portal/internal/domain"
)

const (
	eventA  = "6f1c2d0e-4b6a-4d8e-9a3b-0c1d2e3f4a5b"
	eventB  = "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
	unknown = "11111111-2222-4333-8444-555555555555"
)

type mockFinder struct {
	events  map[string]*domain.Event
	err     error
	lookups []string
}

func (m *mockFinder) GetByID(_ context.Context, id string) (*domain.Event, error) {
	m.lookups = append(m.lookups, id)
	if m.err != nil {
		return nil, m.err
	}
	return m.events[id], nil
}

func (m *mockFinder) ListActive(context.Context) ([]*domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Event
	for _, e := range m.events {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func newFinder(activeA, activeB bool) *mockFinder {
	return &mockFinder{events: map[string]*domain.Event{
		eventA: {ID: eventA, Slug: "a", IsActive: activeA},
		eventB: {ID: eventB, Slug: "b", IsActive: activeB},
	}}
}

func request(path string, header map[string]string, query url.Values) Request {
	h := http.Header{}
	for k, v := range header {
		h.Set(k, v)
	}
	return Request{Path: path, Header: h, Query: query}
}

func TestResolve_Priority(t *testing.T) {
	tests := []struct {
		name         string
		finder       *mockFinder
		req          Request
		wantEvent    string
		wantStrategy Strategy
	}{
		{
			name:         "path beats header",
			finder:       newFinder(false, false),
			req:          request("/api/v1/events/"+eventA+"/lighthouses", map[string]string{"X-Event-ID": eventB}, nil),
			wantEvent:    eventA,
			wantStrategy: StrategyPath,
		},
		{
			name:         "header beats query",
			finder:       newFinder(false, false),
			req:          request("/api/v1/lighthouses", map[string]string{"X-Event-ID": eventB}, url.Values{"event": {eventA}}),
			wantEvent:    eventB,
			wantStrategy: StrategyHeader,
		},
		{
			name:         "query beats active",
			finder:       newFinder(true, false),
			req:          request("/api/v1/lighthouses", nil, url.Values{"event": {eventB}}),
			wantEvent:    eventB,
			wantStrategy: StrategyQuery,
		},
		{
			name:         "malformed path falls through to header",
			finder:       newFinder(false, false),
			req:          request("/api/v1/events/not-a-uuid/teams", map[string]string{"X-Event-ID": eventB}, nil),
			wantEvent:    eventB,
			wantStrategy: StrategyHeader,
		},
		{
			name:         "unknown header falls through to active",
			finder:       newFinder(true, false),
			req:          request("/api/v1/teams", map[string]string{"X-Event-ID": unknown}, nil),
			wantEvent:    eventA,
			wantStrategy: StrategyActive,
		},
		{
			name:         "single active event is the fallback",
			finder:       newFinder(false, true),
			req:          request("/ws/lighthouses/global", nil, nil),
			wantEvent:    eventB,
			wantStrategy: StrategyActive,
		},
		{
			name:         "websocket path",
			finder:       newFinder(false, false),
			req:          request("/ws/events/"+eventB+"/lighthouses/4", nil, nil),
			wantEvent:    eventB,
			wantStrategy: StrategyPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.finder).Resolve(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, res.Event.ID)
			assert.Equal(t, tt.wantStrategy, res.Strategy)
		})
	}
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name       string
		finder     *mockFinder
		req        Request
		wantReason Reason
		wantStatus int
	}{
		{"no signal and no active event", newFinder(false, false), request("/api/v1/teams", nil, nil), ReasonMissing, http.StatusBadRequest},
		{"two active events decline", newFinder(true, true), request("/api/v1/teams", nil, nil), ReasonAmbiguous, http.StatusBadRequest},
		{"malformed header", newFinder(false, false), request("/api/v1/teams", map[string]string{"X-Event-ID": "abc"}, nil), ReasonMalformed, http.StatusBadRequest},
		{"well formed but unknown", newFinder(false, false), request("/api/v1/events/"+unknown+"/teams", nil, nil), ReasonNotFound, http.StatusNotFound},
		{"unknown beats malformed", newFinder(false, false), request("/api/v1/teams", map[string]string{"X-Event-ID": "abc"}, url.Values{"event": {unknown}}), ReasonNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.finder).Resolve(context.Background(), tt.req)
			var rerr *ResolutionError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.wantReason, rerr.Reason)
			assert.Equal(t, tt.wantStatus, rerr.Status())
			assert.NotEmpty(t, rerr.Summary)
			assert.NotEmpty(t, rerr.Detail)
		})
	}
}

func TestResolve_StoreErrorAborts(t *testing.T) {
	finder := newFinder(true, false)
	finder.err = errors.New("connection refused")

	_, err := New(finder).Resolve(context.Background(), request("/api/v1/events/"+eventA+"/teams", nil, nil))
	require.Error(t, err)
	var rerr *ResolutionError
	assert.False(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, finder.err)
}

func TestResolve_CustomHeader(t *testing.T) {
	finder := newFinder(false, false)
	r := New(finder, WithHeader("X-Hackathon"))
	assert.Equal(t, "X-Hackathon", r.Header())

	res, err := r.Resolve(context.Background(), request("/x", map[string]string{"X-Hackathon": eventA}, nil))
	require.NoError(t, err)
	assert.Equal(t, eventA, res.Event.ID)
}

func TestResolveStrict(t *testing.T) {
	finder := newFinder(true, false)
	r := New(finder)
	ctx := context.Background()

	res, err := r.ResolveStrict(ctx, request("/x", map[string]string{"X-Event-ID": eventB}, nil))
	require.NoError(t, err)
	assert.Equal(t, eventB, res.Event.ID)
	assert.Equal(t, StrategyHeader, res.Strategy)

	tests := []struct {
		name       string
		req        Request
		wantStatus int
	}{
		// the path and the active event are ignored
		{"missing", request("/api/v1/events/"+eventA+"/teams", nil, nil), http.StatusBadRequest},
		{"malformed", request("/x", map[string]string{"X-Event-ID": "nope"}, nil), http.StatusBadRequest},
		{"not found", request("/x", map[string]string{"X-Event-ID": unknown}, nil), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveStrict(ctx, tt.req)
			var rerr *ResolutionError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.wantStatus, rerr.Status())
		})
	}
}

func TestFromHTTP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/teams?event="+eventA, nil)
	req.Header.Set("X-Event-ID", eventB)

	got := FromHTTP(req)
	assert.Equal(t, "/api/v1/teams", got.Path)
	assert.Equal(t, eventA, got.Query.Get("event"))
	assert.Equal(t, eventB, got.Header.Get("X-Event-ID"))
}

func TestSubdomainNeverMatches(t *testing.T) {
	finder := newFinder(false, false)
	req := Request{Path: "/", Host: "a.hack.example.com"}
	ev, att, err := New(finder).fromSubdomain(context.Background(), req)
	assert.Nil(t, ev)
	assert.Nil(t, att)
	assert.NoError(t, err)
}
