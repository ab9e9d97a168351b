package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel is the pub/sub channel downstream bed-management and
// reporting systems subscribe to.
const Channel = "regula.assignments"

// RedisPublisher fans events out over redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisPublisher connects to redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, redisURL string, logger zerolog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPublisher{client: client, logger: logger}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, e AssignmentEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal assignment event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish assignment event: %w", err)
	}
	p.logger.Debug().Str("event_type", e.Type).Stringer("patient_id", e.PatientID).Msg("event published")
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
