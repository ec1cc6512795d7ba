package queue

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Consumer struct {
	client    *redis.Client
	queue     string
	dlqSuffix string
	log       zerolog.Logger
}

type MessageHandler func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient, queue, dlqSuffix string, log zerolog.Logger) *Consumer {
	return &Consumer{
		client:    redisClient.Client(),
		queue:     queue,
		dlqSuffix: dlqSuffix,
		log:       log.With().Str("queue", queue).Logger(),
	}
}

// Consume pops messages until ctx is done. A message whose handler fails is
// pushed to the dead-letter queue; it is never retried here.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := c.client.BRPop(ctx, 5*time.Second, c.queue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Timeout, continue polling
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Msg("Failed to consume message")
			continue
		}

		if len(result) < 2 {
			continue
		}

		message := result[1]
		if err := handler(ctx, []byte(message)); err != nil {
			c.log.Error().Err(err).Msg("Failed to process message")
			c.DeadLetter(ctx, []byte(message))
		}
	}
}

// DeadLetter parks a message on the dead-letter queue. Handlers that finish
// their work asynchronously call it themselves.
func (c *Consumer) DeadLetter(ctx context.Context, data []byte) {
	dlqName := c.queue + c.dlqSuffix
	if err := c.client.LPush(ctx, dlqName, data).Err(); err != nil {
		c.log.Error().Err(err).Str("dlq", dlqName).Msg("Failed to move message to DLQ")
	}
}
