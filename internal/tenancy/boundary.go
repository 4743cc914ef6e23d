// Package tenancy binds every non-exempt request to exactly one event.
package tenancy

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/eventctx"
	"github.com/hackportal/portal/internal/resolver"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/response"
	"github.com/hackportal/portal/pkg/telemetry"
)

const (
	// gin context keys
	ContextKeyEvent    = "event"
	ContextKeyStrategy = "event_strategy"

	HeaderEventStrategy = "X-Event-Strategy"
)

// DefaultExemptPaths are served without an event
var DefaultExemptPaths = []string{
	"/health",
	"/ready",
	"/metrics",
	"/api/v1/auth",
	"/api/v1/admin",
}

// Resolver is what the boundary needs from the event resolver
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) (*resolver.Resolution, error)
	ResolveStrict(ctx context.Context, req resolver.Request) (*resolver.Resolution, error)
	Header() string
}

// Config configures the boundary
type Config struct {
	Resolver    Resolver
	ExemptPaths []string
	// Strict resolves from the header only
	Strict bool
	Logger *logger.Logger
}

// Boundary resolves the event for each request, exposes it to the handler
// chain and clears it when the request ends, whatever way it ends.
func Boundary(cfg Config) gin.HandlerFunc {
	exempt := cfg.ExemptPaths
	if exempt == nil {
		exempt = DefaultExemptPaths
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	resolve := cfg.Resolver.Resolve
	if cfg.Strict {
		resolve = cfg.Resolver.ResolveStrict
	}
	eventHeader := cfg.Resolver.Header()

	return func(c *gin.Context) {
		if isExempt(c.Request.URL.Path, exempt) {
			c.Next()
			return
		}

		ctx, slot := eventctx.New(c.Request.Context())
		defer slot.Clear()

		res, err := traceResolve(ctx, resolve, resolver.FromHTTP(c.Request))
		if err != nil {
			var rerr *resolver.ResolutionError
			if errors.As(err, &rerr) {
				log.DebugContext(ctx, "event resolution failed",
					zap.String("path", c.Request.URL.Path),
					zap.String("reason", string(rerr.Reason)),
				)
				c.AbortWithStatusJSON(rerr.Status(), response.Problem(problemCode(rerr.Reason), rerr.Summary, rerr.Detail))
				return
			}
			log.ErrorContext(ctx, "event resolution error", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.InternalError(""))
			return
		}

		slot.Set(res.Event)
		ctx = context.WithValue(ctx, logger.EventIDKey, res.Event.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyEvent, res.Event)
		c.Set(ContextKeyStrategy, res.Strategy)
		c.Header(eventHeader, res.Event.ID)
		c.Header(HeaderEventStrategy, string(res.Strategy))

		log.DebugContext(ctx, "event resolved", zap.String("strategy", string(res.Strategy)))

		c.Next()
	}
}

func traceResolve(ctx context.Context, resolve func(context.Context, resolver.Request) (*resolver.Resolution, error), req resolver.Request) (*resolver.Resolution, error) {
	ctx, span := telemetry.StartSpan(ctx, "tenancy.resolve")
	defer span.End()

	res, err := resolve(ctx, req)
	if err != nil {
		var rerr *resolver.ResolutionError
		if errors.As(err, &rerr) {
			span.SetAttributes(telemetry.ReasonAttr(string(rerr.Reason)))
		} else {
			telemetry.SetSpanError(ctx, err)
		}
		return nil, err
	}
	span.SetAttributes(telemetry.StrategyAttr(string(res.Strategy)), telemetry.EventIDAttr(res.Event.ID))
	return res, nil
}

// Event returns the event bound to the request
func Event(c *gin.Context) (*domain.Event, bool) {
	v, ok := c.Get(ContextKeyEvent)
	if !ok {
		return nil, false
	}
	event, ok := v.(*domain.Event)
	return event, ok && event != nil
}

// Strategy returns how the request's event was resolved
func Strategy(c *gin.Context) resolver.Strategy {
	v, _ := c.Get(ContextKeyStrategy)
	s, _ := v.(resolver.Strategy)
	return s
}

func isExempt(path string, exempt []string) bool {
	for _, prefix := range exempt {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func problemCode(reason resolver.Reason) string {
	switch reason {
	case resolver.ReasonNotFound:
		return response.ErrCodeEventNotFound
	case resolver.ReasonMalformed:
		return response.ErrCodeEventInvalid
	default:
		return response.ErrCodeEventRequired
	}
}
