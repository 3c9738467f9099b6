package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client used as a product price cache
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
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

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func priceKey(productID int64) string {
	return fmt.Sprintf("price:%d", productID)
}

// GetPrices returns the cached prices among ids; ids not in the cache are omitted
func (c *Client) GetPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[int64]decimal.Decimal{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("price lookup failed: %w", err)
	}
	return decodePrices(ids, values), nil
}

// SetPrices caches prices with the configured TTL
func (c *Client) SetPrices(ctx context.Context, prices map[int64]decimal.Decimal) error {
	if len(prices) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for id, price := range prices {
		pipe.Set(ctx, priceKey(id), price.String(), c.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// InvalidatePrice drops the cached price of a product
func (c *Client) InvalidatePrice(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, priceKey(productID)).Err()
}

// decodePrices pairs MGET results with their ids, skipping misses and garbage
func decodePrices(ids []int64, values []interface{}) map[int64]decimal.Decimal {
	prices := make(map[int64]decimal.Decimal, len(ids))
	for i, v := range values {
		if i >= len(ids) {
			break
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(s)
		if err != nil {
			continue
		}
		prices[ids[i]] = price
	}
	return prices
}
