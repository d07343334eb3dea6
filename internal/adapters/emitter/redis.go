package emitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisEmitter publishes accepted events on a Redis pub/sub channel.
type RedisEmitter struct {
	client  publisher
	channel string
	log     zerolog.Logger
}

// RedisConfig configures a RedisEmitter.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// NewRedisEmitter connects to Redis and verifies the connection.
func NewRedisEmitter(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisEmitter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return newRedisEmitter(client, cfg.Channel, log), nil
}

func newRedisEmitter(client publisher, channel string, log zerolog.Logger) *RedisEmitter {
	return &RedisEmitter{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "redis").Logger(),
	}
}

// Emit publishes record as JSON on the configured channel.
func (r *RedisEmitter) Emit(ctx context.Context, record domain.EventRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	r.log.Debug().Str("id", string(record.ID)).Int64("receivers", receivers).Msg("Published event")
	return nil
}

// Close closes the client.
func (r *RedisEmitter) Close() error {
	return r.client.Close()
}
