package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/redis"
)

// DefaultChannel is the Redis channel room traffic travels on
const DefaultChannel = "portal:rooms"

// Envelope is a payload addressed to a room
type Envelope struct {
	Room    Room            `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Bus carries room traffic between hub instances. Every envelope
// published, including by this instance, is handed to deliver.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// Start begins delivery; it returns once the bus is ready to deliver
	Start(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// LocalBus delivers in process, synchronously
type LocalBus struct {
	mu      sync.RWMutex
	deliver func(Envelope)
}

// NewLocalBus creates a LocalBus
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()

	if deliver == nil {
		return fmt.Errorf("local bus not started")
	}
	deliver(env)
	return nil
}

func (b *LocalBus) Start(_ context.Context, deliver func(Envelope)) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.deliver = nil
	b.mu.Unlock()
	return nil
}

// RedisBus fans room traffic out through Redis pub/sub so members
// connected to other instances receive it
type RedisBus struct {
	client  *redis.Client
	channel string
	log     *logger.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	done   chan struct{}
}

// NewRedisBus creates a RedisBus on channel
func NewRedisBus(client *redis.Client, channel string, log *logger.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisBus{client: client, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data)
}

// Start subscribes and waits for the confirmation before returning
func (b *RedisBus) Start(ctx context.Context, deliver func(Envelope)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	go func() {
		defer close(done)
		msgChan := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("discarding undecodable room envelope", zap.Error(err))
					continue
				}
				deliver(env)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
