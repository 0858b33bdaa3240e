package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Debug(msg string, keysAndValues ...any)
}

// ErrEmpty is returned by PopTask when the list is empty at timeout.
var ErrEmpty = errors.New("redis: list empty")

// Client wraps redis.Client with the queue and lock operations the ingest
// pipeline uses.
type Client struct {
	redis  *redis.Client
	logger Logger
}

// NewClient creates a new Redis client wrapper
func NewClient(redisClient *redis.Client, logger Logger) *Client {
	return &Client{
		redis:  redisClient,
		logger: logger,
	}
}

// GetUnderlying returns the underlying redis.Client for advanced operations
func (c *Client) GetUnderlying() *redis.Client {
	return c.redis
}

// PushTask appends a serialized task to a shard list.
func (c *Client) PushTask(ctx context.Context, list string, payload []byte) error {
	if err := c.redis.RPush(ctx, list, payload).Err(); err != nil {
		c.logger.Error("redis RPUSH failed", "list", list, "error", err)
		return fmt.Errorf("failed to push task to %s: %w", list, err)
	}
	c.logger.Debug("redis RPUSH", "list", list)
	return nil
}

// PopTask blocks on a shard list until a task arrives or the timeout
// elapses. Returns ErrEmpty on timeout.
func (c *Client) PopTask(ctx context.Context, list string, timeout time.Duration) ([]byte, error) {
	res, err := c.redis.BLPop(ctx, timeout, list).Result()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop task from %s: %w", list, err)
	}
	// BLPOP returns [key, value]
	return []byte(res[1]), nil
}

// SetNX sets a key only if it doesn't exist (for sync locks)
func (c *Client) SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error) {
	wasSet, err := c.redis.SetNX(ctx, key, value, expiry).Result()
	if err != nil {
		c.logger.Error("redis SETNX failed", "key", key, "error", err)
		return false, fmt.Errorf("failed to setnx key %s: %w", key, err)
	}
	c.logger.Debug("redis SETNX", "key", key, "was_set", wasSet)
	return wasSet, nil
}

// Delete removes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("redis DEL failed", "keys", keys, "error", err)
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Health pings the server
func (c *Client) Health(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.redis.Close()
}
