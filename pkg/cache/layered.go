package cache

import (
	"context"
	"time"
)

// LayeredCache fronts Redis with an in-process L1. Reads hit memory first
// and promote Redis hits; writes go through to both layers. Cross-instance
// operations (locks, counters, multi-key) always go to Redis.
type LayeredCache struct {
	l1         *MemoryCache
	l2         *RedisCache
	promoteTTL time.Duration
}

// defaultPromoteTTL bounds how long a promoted L2 hit lives in L1. Keeping
// it short means L1 staleness never outlasts the L2 expiry by much.
const defaultPromoteTTL = 30 * time.Second

// NewLayeredCache creates a layered cache in front of the given Redis
// backend.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		PromoteTTL:    defaultPromoteTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		l1:         NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:         redisCache,
		promoteTTL: cfg.PromoteTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, value, expiration)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	lc.promote(ctx, key, dest)
	return nil
}

// promote copies an L2 hit into L1 for the promotion TTL, never for the
// memory default: the Redis key may be close to expiry and L1 must not
// serve it long past that. The dereferenced value is stored, not the
// caller's destination pointer.
func (lc *LayeredCache) promote(ctx context.Context, key string, dest interface{}) {
	switch d := dest.(type) {
	case *string:
		_ = lc.l1.Set(ctx, key, *d, lc.promoteTTL)
	case *interface{}:
		_ = lc.l1.Set(ctx, key, *d, lc.promoteTTL)
	}
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.l1.DeleteByPattern(ctx, pattern)
	return lc.l2.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.l2.Exists(ctx, keys...)
}

func (lc *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	return lc.l2.Increment(ctx, key)
}

func (lc *LayeredCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return lc.l2.Expire(ctx, key, expiration)
}

func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	return lc.l2.MSet(ctx, values, expiration)
}

func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return lc.l2.MGet(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
