package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/pkg/kafka"
	"github.com/hackportal/portal/pkg/logger"
)

// StatusPublisher announces lighthouse and mentor request changes to
// other systems. Publishing is best effort and never fails the change.
type StatusPublisher interface {
	Publish(ctx context.Context, event *dto.StatusEvent)
}

// NoopStatusPublisher discards events
type NoopStatusPublisher struct{}

// Publish does nothing
func (NoopStatusPublisher) Publish(context.Context, *dto.StatusEvent) {}

// KafkaStatusPublisher writes status events to a Kafka topic
type KafkaStatusPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

// NewKafkaStatusPublisher creates a KafkaStatusPublisher
func NewKafkaStatusPublisher(producer *kafka.Producer, topic string, log *logger.Logger) *KafkaStatusPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaStatusPublisher{producer: producer, topic: topic, log: log}
}

// Publish produces the event asynchronously and logs delivery failures
func (p *KafkaStatusPublisher) Publish(ctx context.Context, event *dto.StatusEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to encode status event", zap.Error(err))
		return
	}

	l := p.log.WithContext(ctx)
	p.producer.PublishAsync(context.WithoutCancel(ctx), kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: map[string]string{
			"event_type": event.EventType,
			"event_id":   event.EventID,
		},
	}, func(err error) {
		if err != nil {
			l.Warn("failed to publish status event",
				zap.String("event_type", event.EventType),
				zap.String("topic", p.topic),
				zap.Error(err),
			)
		}
	})
}
