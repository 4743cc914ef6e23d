package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRecord(t *testing.T) {
	rec := toRecord(Message{
		Topic:   "portal.status",
		Key:     []byte("event-1"),
		Value:   []byte(`{"type":"lighthouse.updated"}`),
		Headers: map[string]string{"type": "lighthouse.updated", "event_id": "event-1"},
	})

	assert.Equal(t, "portal.status", rec.Topic)
	assert.Equal(t, []byte("event-1"), rec.Key)
	require.Len(t, rec.Headers, 2)
	// headers are sorted by key
	assert.Equal(t, "event_id", rec.Headers[0].Key)
	assert.Equal(t, "type", rec.Headers[1].Key)
	assert.Equal(t, []byte("lighthouse.updated"), rec.Headers[1].Value)
}

func TestToRecord_NoHeaders(t *testing.T) {
	rec := toRecord(Message{Topic: "t", Value: []byte("v")})
	assert.Nil(t, rec.Headers)
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), &Config{})
	assert.Error(t, err)
}

func TestProducer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultConfig()
	if brokers := os.Getenv("TEST_KAFKA_BROKERS"); brokers != "" {
		cfg.Brokers = strings.Split(brokers, ",")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := NewProducer(ctx, cfg)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(ctx, Message{Topic: "portal.test", Key: []byte("k"), Value: []byte("v")}))

	done := make(chan error, 1)
	p.PublishAsync(ctx, Message{Topic: "portal.test", Value: []byte("async")}, func(err error) { done <- err })
	require.NoError(t, p.Flush(ctx))
	assert.NoError(t, <-done)
}
