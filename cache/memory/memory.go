// Package memory is an in-process wallet.Cache holding JSON-encoded values with per-entry TTL.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/next-trace/scg-wallet-bridge/wallet"
)

// Cache is safe for concurrent use. Values are stored encoded so readers never share memory with writers.
// Expired entries are unreadable at once and are removed by the cleanup loop run by Start.
type Cache struct {
	items *ttlcache.Cache[string, []byte]
}

var _ wallet.Cache = (*Cache)(nil)

func New() *Cache {
	return &Cache{
		items: ttlcache.New[string, []byte](
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}
}

// Start runs the expiry cleanup loop until Stop is called. It blocks.
func (c *Cache) Start() { c.items.Start() }

// Stop ends a loop begun with Start. It must not be called without one.
func (c *Cache) Stop() { c.items.Stop() }

// DeleteExpired removes every expired entry now.
func (c *Cache) DeleteExpired() { c.items.DeleteExpired() }

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	item := c.items.Get(key)
	if item == nil {
		return false, nil
	}

	if err := json.Unmarshal(item.Value(), dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	return true, nil
}

// Set stores v under key. A non-positive ttl never expires.
func (c *Cache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}

	c.items.Set(key, b, ttl)

	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)

	return nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() int { return c.items.Len() }
