package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultMemoryTTL bounds entries written without an explicit expiration,
// so a misconfigured caller cannot pin verdicts forever.
const defaultMemoryTTL = 7 * 24 * time.Hour

type memoryEntry struct {
	value      interface{}
	expireAt   time.Time
	lastAccess time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache implements Service with an in-process map. Eviction is LRU on
// insert once maxSize is reached; expired entries are also swept by a
// background ticker.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	maxSize int
	sweeper *time.Ticker
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: cfg.MaxSize,
		sweeper: time.NewTicker(cfg.CleanupInterval),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}

	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}
	now := time.Now()
	mc.entries[key] = &memoryEntry{
		value:      value,
		expireAt:   now.Add(expiration),
		lastAccess: now,
	}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	e, ok := mc.entries[key]
	if !ok || e.expired(now) {
		if ok {
			delete(mc.entries, key)
		}
		return ErrCacheMiss
	}
	e.lastAccess = now

	switch d := dest.(type) {
	case *string:
		if s, ok := e.value.(string); ok {
			*d = s
			return nil
		}
	case *interface{}:
		*d = e.value
		return nil
	}
	return fmt.Errorf("memory cache: unsupported destination %T", dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

// DeleteByPattern drops everything. Pattern matching is a redis feature; the
// in-process backend only needs the invalidate-all semantics.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, _ string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*memoryEntry)
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	now := time.Now()
	for _, key := range keys {
		if e, ok := mc.entries[key]; ok && !e.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.entries[key]
	if !ok {
		now := time.Now()
		mc.entries[key] = &memoryEntry{value: int64(1), expireAt: now.Add(defaultMemoryTTL), lastAccess: now}
		return 1, nil
	}
	v, ok := e.value.(int64)
	if !ok {
		return 0, fmt.Errorf("value is not int64")
	}
	e.value = v + 1
	return v + 1, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if e, ok := mc.entries[key]; ok {
		e.expireAt = time.Now().Add(expiration)
		return true, nil
	}
	return false, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for key, value := range values {
		if err := mc.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	now := time.Now()
	results := make(map[string]string)
	for _, key := range keys {
		if e, ok := mc.entries[key]; ok && !e.expired(now) {
			if s, ok := e.value.(string); ok {
				results[key] = s
			}
		}
	}
	return results, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if e, ok := mc.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	mc.entries[key] = &memoryEntry{value: "locked", expireAt: now.Add(ttl), lastAccess: now}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	oldest := time.Now()
	for key, e := range mc.entries {
		if e.lastAccess.Before(oldest) {
			oldest = e.lastAccess
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	for range mc.sweeper.C {
		mc.mu.Lock()
		now := time.Now()
		for key, e := range mc.entries {
			if e.expired(now) {
				delete(mc.entries, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the background sweeper.
func (mc *MemoryCache) Close() error {
	if mc.sweeper != nil {
		mc.sweeper.Stop()
	}
	return nil
}
