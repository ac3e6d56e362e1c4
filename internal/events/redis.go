// README: Redis-backed publisher; gateway processes SUBSCRIBE to the same rooms.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisPublisher struct {
	redis *redis.Client
	log   *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{redis: client, log: log}
}

// Publish marshals the event and PUBLISHes it. Failures are logged and
// swallowed; publication must never fail the mutation that triggered it.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		p.log.Error("marshal event", zap.String("event", e.Name), zap.Error(err))
		return
	}
	if err := p.redis.Publish(ctx, channel, body).Err(); err != nil {
		p.log.Warn("publish event",
			zap.String("channel", channel),
			zap.String("event", e.Name),
			zap.Error(err),
		)
	}
}
