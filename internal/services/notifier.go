package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

// NotificationQueue is the Redis list the worker pool drains.
const NotificationQueue = "queue:office-hour-notifications"

// UserUpdatesChannel is the per-user pub/sub channel relayed to sockets.
func UserUpdatesChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

type RedisNotifier struct {
	redis *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, job models.NotificationJob) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification job: %w", err)
	}
	if err := n.redis.LPush(ctx, NotificationQueue, string(jobBytes)).Err(); err != nil {
		return fmt.Errorf("enqueue notification job: %w", err)
	}
	return nil
}

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

// PublishToUser sends a WebSocket update via Redis pub/sub.
func (p *RedisPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, UserUpdatesChannel(userID), string(data)).Err()
}
