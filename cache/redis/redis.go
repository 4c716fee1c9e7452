// Package redis is a wallet.Cache backed by Redis. Values are stored as JSON strings.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/next-trace/scg-wallet-bridge/wallet"
)

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Cache implements wallet.Cache over a go-redis client.
type Cache struct {
	client *goredis.Client
}

var _ wallet.Cache = (*Cache)(nil)

// New dials a single Redis node. Connections are lazy; use Ping to verify reachability.
func New(opts Options) *Cache {
	return &Cache{client: goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err = json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("redis decode %s: %w", key, err)
	}

	return true, nil
}

// Set stores v under key. A non-positive ttl keeps the key without expiry.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}

	if ttl < 0 {
		ttl = 0
	}

	if err = c.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

// Ping checks the server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error { return c.client.Close() }
