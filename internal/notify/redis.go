package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-carlost-detector/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes messages on a Redis pub/sub channel
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to Redis. A failed ping is logged but does not
// prevent construction; publishing reports the error instead.
func NewRedisNotifier(addr, password string, db int, channel string) *RedisNotifier {
	logger.Info(fmt.Sprintf("Connecting to Redis at %s...", addr))

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
	} else {
		logger.Info("Successfully connected to Redis")
	}

	return &RedisNotifier{client: client, channel: channel}
}

// Publish sends msg as JSON on the configured channel
func (r *RedisNotifier) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis channel %s: %w", r.channel, err)
	}
	return nil
}

// Name returns the notifier name
func (r *RedisNotifier) Name() string {
	return "redis"
}

// Close closes the client
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
