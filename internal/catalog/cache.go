package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "catalog:version"
	cacheListKey    = "catalog:products"
)

// Cache keeps a versioned snapshot of the product list in Redis. Bumping the
// version orphans every previously written snapshot.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Products returns the cached product list or loads and stores it.
func (c *Cache) Products(ctx context.Context, loader func(context.Context) ([]Product, error)) ([]Product, error) {
	if loader == nil {
		return nil, errors.New("catalog cache: loader required")
	}
	if !c.enabled() {
		return loader(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%d", cacheListKey, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var products []Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	products, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Bump invalidates cached snapshots.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
