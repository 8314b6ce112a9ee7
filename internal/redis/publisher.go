package redisclient

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventChannel is where domain events are published for the external
// notification dispatcher. Delivery is fire-and-forget; the engine never
// blocks on a consumer.
const EventChannel = "qzero:scheduling:events"

type ChannelPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewChannelPublisher(client *redis.Client, logger *zap.Logger) *ChannelPublisher {
	return &ChannelPublisher{client: client, logger: logger}
}

// Publish pushes a serialized event onto the channel. Failures are
// logged and swallowed: losing a notification must never fail the
// operation that produced it.
func (p *ChannelPublisher) Publish(ctx context.Context, payload []byte) {
	if err := p.client.Publish(ctx, EventChannel, payload).Err(); err != nil {
		p.logger.Warn("event publish failed", zap.Error(err))
	}
}
