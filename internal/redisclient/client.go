package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"autoparts-service/internal/models"
)

const (
	settingsKey     = "app:settings"
	cartCountKeyFmt = "cart:count:%s"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCachedSettings retrieves the cached app settings, or nil on a miss.
func (c *Client) GetCachedSettings(ctx context.Context) (*models.AppSettings, error) {
	raw, err := c.rdb.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings models.AppSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode cached settings: %w", err)
	}
	return &settings, nil
}

// CacheSettings stores app settings with a TTL. The TTL is short so
// admin edits propagate without explicit invalidation fan-out.
func (c *Client) CacheSettings(ctx context.Context, settings *models.AppSettings, ttl time.Duration) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return c.rdb.Set(ctx, settingsKey, raw, ttl).Err()
}

// InvalidateSettings drops the cached settings
func (c *Client) InvalidateSettings(ctx context.Context) error {
	return c.rdb.Del(ctx, settingsKey).Err()
}

// GetCartCount retrieves a user's cached cart quantity total. Returns
// found=false on a miss.
func (c *Client) GetCartCount(ctx context.Context, userID string) (count int, found bool, err error) {
	count, err = c.rdb.Get(ctx, fmt.Sprintf(cartCountKeyFmt, userID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// SetCartCount caches a user's cart quantity total
func (c *Client) SetCartCount(ctx context.Context, userID string, count int, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf(cartCountKeyFmt, userID), count, ttl).Err()
}

// InvalidateCartCount drops a user's cached cart count after any cart
// mutation or checkout.
func (c *Client) InvalidateCartCount(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(cartCountKeyFmt, userID)).Err()
}
