package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shakirjon803-cell/obmen/internal/models"
)

// chatEventsChannel carries wire frames addressed to one recipient across
// server instances.
const chatEventsChannel = "chat:events"

const presenceTTL = 5 * time.Minute

// Envelope wraps an encoded wire frame with its target user for pub/sub
// fanout.
type Envelope struct {
	RecipientID int64           `json:"recipient_id"`
	Frame       json.RawMessage `json:"frame"`
}

type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Presence Management

// SetUserOnline sets a user as online
func (r *RedisClient) SetUserOnline(userID int64) error {
	key := fmt.Sprintf("presence:user:%d", userID)
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "online",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, presenceTTL).Err()
}

// SetUserOffline sets a user as offline
func (r *RedisClient) SetUserOffline(userID int64) error {
	key := fmt.Sprintf("presence:user:%d", userID)
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "offline",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, 24*time.Hour).Err()
}

// IsUserOnline reports whether a user has a live presence record.
func (r *RedisClient) IsUserOnline(userID int64) (bool, error) {
	key := fmt.Sprintf("presence:user:%d", userID)
	data, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var presence models.UserPresence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return false, err
	}
	return presence.Status == "online", nil
}

// Typing Indicators

// SetTyping marks a user as typing in a conversation. The key expires on its
// own so a crashed client never leaves a stale indicator.
func (r *RedisClient) SetTyping(conversationID, userID int64) error {
	key := fmt.Sprintf("typing:%d:%d", conversationID, userID)
	return r.client.Set(r.ctx, key, 1, 10*time.Second).Err()
}

// Pub/Sub

// PublishEvent publishes an encoded frame addressed to one user.
func (r *RedisClient) PublishEvent(recipientID int64, frame []byte) error {
	data, err := json.Marshal(Envelope{RecipientID: recipientID, Frame: frame})
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, chatEventsChannel, data).Err()
}

// SubscribeToEvents subscribes to the chat events channel.
func (r *RedisClient) SubscribeToEvents() *redis.PubSub {
	return r.client.Subscribe(r.ctx, chatEventsChannel)
}

// GetClient returns the underlying Redis client
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}
