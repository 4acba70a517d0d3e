package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// RedisClient is the part of the go-redis client the publisher needs.
// Any redis.UniversalClient satisfies it.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisherConfig contains configuration for RedisPublisher.
type RedisPublisherConfig struct {
	// Client is the Redis client to use
	Client RedisClient

	// Channel is the pub/sub channel (default: "chill:events")
	Channel string

	// Timeout bounds a single publish (default: 2s)
	Timeout time.Duration

	// Breaker skips publishing while Redis keeps failing.
	// Defaults to circuitbreaker.DefaultConfig().
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging
	Logger *slog.Logger
}

// RedisPublisher forwards events to a Redis pub/sub channel as JSON
// envelopes, so listeners outside the process (archivers, other devices'
// presentation layers) can follow along.
type RedisPublisher struct {
	client  RedisClient
	channel string
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewRedisPublisher creates a publisher.
func NewRedisPublisher(config RedisPublisherConfig) (*RedisPublisher, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.Channel == "" {
		config.Channel = "chill:events"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Breaker == nil {
		logger := config.Logger
		bc := circuitbreaker.DefaultConfig()
		bc.OnStateChange = func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		}
		config.Breaker = circuitbreaker.New("redis-publisher", bc)
	}
	return &RedisPublisher{
		client:  config.Client,
		channel: config.Channel,
		timeout: config.Timeout,
		breaker: config.Breaker,
		logger:  config.Logger,
	}, nil
}

// Handle publishes one event. It has the shared.EventHandler signature so
// the publisher can be subscribed to an async Bus.
func (p *RedisPublisher) Handle(event shared.Event) error {
	envelope, err := shared.NewEventEnvelope(uuid.NewString(), event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.client.Publish(ctx, p.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Notify implements shared.EventSink. Failures are logged and swallowed.
func (p *RedisPublisher) Notify(event shared.Event) {
	if err := p.Handle(event); err != nil {
		p.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// DecodeEnvelope parses a message published by RedisPublisher.
func DecodeEnvelope(payload string) (shared.EventEnvelope, error) {
	var envelope shared.EventEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return shared.EventEnvelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return envelope, nil
}
