// Package events publishes committed ledger movements to Redis pub/sub so
// downstream consumers (statements, notifications) can react to them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/infra/resilience"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("events")

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisPublisher publishes movement events on a Redis channel through a
// circuit breaker with retry.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	cb      *gobreaker.CircuitBreaker
	cfg     resilience.Config
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(rdb *redis.Client, channel string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, cb: cb, cfg: cfg, logger: logger}
}

// PublishMovement serializes event as JSON and publishes it. Context
// cancellation and deadline errors are not retried.
func (p *RedisPublisher) PublishMovement(ctx context.Context, event *domain.MovementEvent) error {
	ctx, span := tracer.Start(ctx, "RedisPublisher.PublishMovement")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", event.EventID),
		attribute.Int64("movement.id", event.MovementID),
		attribute.String("redis.channel", p.channel),
	)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal movement event: %w", err)
	}

	_, err = p.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, p.cfg, func() error {
			err := p.rdb.Publish(ctx, p.channel, payload).Err()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "redis"}
	}
	if err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}

	p.logger.Debug("movement event published",
		zap.String("event_id", event.EventID),
		zap.Int64("movement_id", event.MovementID),
		zap.String("channel", p.channel),
	)
	return nil
}

// NopPublisher discards events. Used when no Redis address is configured.
type NopPublisher struct{}

func (NopPublisher) PublishMovement(context.Context, *domain.MovementEvent) error { return nil }
