package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"pricing-service/internal/models"
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

// AcquireOrderLock takes the per-order mutation lock. At most one mutation
// is in flight per order id; a held lock means the caller must reject the
// request with a conflict rather than interleave.
func (c *Client) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:order:%s", orderID), "1", ttl).Result()
}

// ReleaseOrderLock releases the per-order mutation lock
func (c *Client) ReleaseOrderLock(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:order:%s", orderID)).Err()
}

// CacheVariant stores a catalog variant snapshot with a TTL
func (c *Client) CacheVariant(ctx context.Context, variant models.Variant, ttl time.Duration) error {
	payload, err := json.Marshal(variant)
	if err != nil {
		return fmt.Errorf("failed to marshal variant: %w", err)
	}
	return c.rdb.Set(ctx, variantKey(variant.SKU), payload, ttl).Err()
}

// GetCachedVariant retrieves a cached variant; found is false on a miss.
func (c *Client) GetCachedVariant(ctx context.Context, sku string) (models.Variant, bool, error) {
	payload, err := c.rdb.Get(ctx, variantKey(sku)).Bytes()
	if err == redis.Nil {
		return models.Variant{}, false, nil
	}
	if err != nil {
		return models.Variant{}, false, err
	}

	var variant models.Variant
	if err := json.Unmarshal(payload, &variant); err != nil {
		return models.Variant{}, false, fmt.Errorf("failed to unmarshal cached variant: %w", err)
	}
	return variant, true, nil
}

// InvalidateVariant drops a cached variant after a catalog change
func (c *Client) InvalidateVariant(ctx context.Context, sku string) error {
	return c.rdb.Del(ctx, variantKey(sku)).Err()
}

// AddRevenueEstimate folds a committed order total into the daily revenue
// rollup. This is a display-only estimate for dashboards, never an
// authoritative total; authoritative numbers come from the order store.
func (c *Client) AddRevenueEstimate(ctx context.Context, day time.Time, amount decimal.Decimal) error {
	key := fmt.Sprintf("revenue:estimate:%s", day.Format("2006-01-02"))
	value, _ := amount.Float64()
	return c.rdb.IncrByFloat(ctx, key, value).Err()
}

// GetRevenueEstimate reads the daily revenue rollup estimate
func (c *Client) GetRevenueEstimate(ctx context.Context, day time.Time) (float64, error) {
	key := fmt.Sprintf("revenue:estimate:%s", day.Format("2006-01-02"))
	value, err := c.rdb.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return value, err
}

func variantKey(sku string) string {
	return fmt.Sprintf("catalog:variant:%s", sku)
}
