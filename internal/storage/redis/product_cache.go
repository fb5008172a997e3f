// Package redis provides a Redis-backed read-through cache for catalog
// lookups.
package redis

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/beautivra/internal/domain/catalog"
)

const (
	keyPrefix = "product:"
	baseTTL   = 10 * time.Minute
	maxJitter = 2 * time.Minute
)

var _ catalog.ProductCache = (*ProductCache)(nil)

// ProductCache caches single product lookups keyed by id or slug. Redis
// failures are logged and the loader is called directly.
type ProductCache struct {
	client redis.UniversalClient
	group  singleflight.Group
	ttl    func() time.Duration
}

// NewProductCache returns a cache that stores entries in client.
func NewProductCache(client redis.UniversalClient) *ProductCache {
	return &ProductCache{
		client: client,
		ttl: func() time.Duration {
			return baseTTL + rand.N(maxJitter)
		},
	}
}

// Get returns the cached product for key or calls load on a miss. Concurrent
// misses for the same key share one load.
func (c *ProductCache) Get(ctx context.Context, key string, load catalog.ProductLoader) (*catalog.Product, error) {
	lg := zctx.From(ctx)

	p, err := c.read(ctx, key)
	switch {
	case err == nil:
		return p, nil
	case !errors.Is(err, redis.Nil):
		lg.Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.write(ctx, key, p); err != nil {
			lg.Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Product), nil
}

// Invalidate drops the given keys. Empty keys are ignored.
func (c *ProductCache) Invalidate(ctx context.Context, keys ...string) {
	redisKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			redisKeys = append(redisKeys, cacheKey(k))
		}
	}
	if len(redisKeys) == 0 {
		return
	}
	if err := c.client.Del(ctx, redisKeys...).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache invalidation failed",
			zap.Strings("keys", redisKeys), zap.Error(err))
	}
}

func (c *ProductCache) read(ctx context.Context, key string) (*catalog.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		return nil, err
	}
	var p catalog.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "unmarshal product")
	}
	return &p, nil
}

func (c *ProductCache) write(ctx context.Context, key string, p *catalog.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal product")
	}
	return c.client.Set(ctx, cacheKey(key), data, c.ttl()).Err()
}

func cacheKey(key string) string {
	return keyPrefix + key
}
