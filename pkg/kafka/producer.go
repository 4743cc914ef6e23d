package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Config holds producer settings
type Config struct {
	Brokers  []string
	ClientID string
	// Linger batches records for up to this long before sending
	Linger      time.Duration
	PingTimeout time.Duration
}

// DefaultConfig returns local defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:     []string{"localhost:9092"},
		ClientID:    "hackportal",
		Linger:      5 * time.Millisecond,
		PingTimeout: 5 * time.Second,
	}
}

// Message is one record to publish
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes records with franz-go
type Producer struct {
	client *kgo.Client
}

// NewProducer creates a client and verifies the brokers are reachable
func NewProducer(ctx context.Context, cfg *Config) (*Producer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerLinger(cfg.Linger),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}

	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: ping brokers: %w", err)
	}

	return &Producer{client: client}, nil
}

// Publish produces a record and waits for the broker acknowledgement
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// PublishAsync produces a record without waiting; done may be nil
func (p *Producer) PublishAsync(ctx context.Context, msg Message, done func(error)) {
	p.client.Produce(ctx, toRecord(msg), func(_ *kgo.Record, err error) {
		if done != nil {
			done(err)
		}
	})
}

// Flush waits for buffered records to be sent
func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close flushes nothing further and closes the client
func (p *Producer) Close() {
	p.client.Close()
}

func toRecord(msg Message) *kgo.Record {
	rec := &kgo.Record{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	if len(msg.Headers) > 0 {
		keys := make([]string, 0, len(msg.Headers))
		for k := range msg.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec.Headers = make([]kgo.RecordHeader, 0, len(keys))
		for _, k := range keys {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(msg.Headers[k])})
		}
	}
	return rec
}
