package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new counter metric
func NewCounter(opts MetricOpts) (*Counter, error) {
	counter, err := GetMeter().Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// MustCounter is NewCounter that falls back to a no-op counter on error
func MustCounter(opts MetricOpts) *Counter {
	c, err := NewCounter(opts)
	if err != nil {
		return &Counter{}
	}
	return c
}

// Add increments the counter by the given value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil || c.counter == nil {
		return
	}
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram wraps an OTel histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a new histogram metric
func NewHistogram(opts MetricOpts, boundaries ...float64) (*Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(boundaries) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(boundaries...))
	}
	histogram, err := GetMeter().Float64Histogram(opts.Name, options...)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	if h == nil || h.histogram == nil {
		return
	}
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// UpDownCounter wraps an OTel up-down counter
type UpDownCounter struct {
	counter metric.Int64UpDownCounter
}

// NewUpDownCounter creates a new up-down counter metric
func NewUpDownCounter(opts MetricOpts) (*UpDownCounter, error) {
	counter, err := GetMeter().Int64UpDownCounter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &UpDownCounter{counter: counter}, nil
}

// Add adds the given value to the counter (can be negative)
func (c *UpDownCounter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil || c.counter == nil {
		return
	}
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Common attribute keys
const (
	AttrEventID     = "event.id"
	AttrStrategy    = "event.strategy"
	AttrRoom        = "hub.room"
	AttrMessageKind = "hub.message.kind"
	AttrOutcome     = "hub.outcome"
	AttrReason      = "hub.reason"
	AttrTable       = "table.number"
	AttrStatus      = "status"
)

func EventIDAttr(eventID string) attribute.KeyValue {
	return attribute.String(AttrEventID, eventID)
}

func StrategyAttr(strategy string) attribute.KeyValue {
	return attribute.String(AttrStrategy, strategy)
}

func RoomAttr(room string) attribute.KeyValue {
	return attribute.String(AttrRoom, room)
}

func MessageKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrMessageKind, kind)
}

func OutcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

func ReasonAttr(reason string) attribute.KeyValue {
	return attribute.String(AttrReason, reason)
}

func TableAttr(number int) attribute.KeyValue {
	return attribute.Int(AttrTable, number)
}

func StatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}
