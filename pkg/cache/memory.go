package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    interface{}
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache is the in-process backend. Size is capped with LRU eviction;
// expired entries are dropped on read and by a background sweep.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryItem
	access  map[string]time.Time
	maxSize int
	sweep   *time.Ticker
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
		data:    make(map[string]*memoryItem),
		access:  make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		sweep:   time.NewTicker(cfg.CleanupInterval),
	}
	go mc.sweepExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.data) >= mc.maxSize {
		mc.evictOldest()
	}

	expireAt := now.Add(expiration)
	if expiration <= 0 {
		expireAt = now.Add(7 * 24 * time.Hour)
	}
	mc.data[key] = &memoryItem{value: value, expireAt: expireAt}
	mc.access[key] = now
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, ok := mc.data[key]
	if !ok || item.expired(now) {
		if ok {
			delete(mc.data, key)
			delete(mc.access, key)
		}
		return ErrCacheMiss
	}
	mc.access[key] = now

	if strPtr, ok := dest.(*string); ok {
		if str, ok := item.value.(string); ok {
			*strPtr = str
			return nil
		}
	}
	*dest.(*interface{}) = item.value
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

// DeleteByPattern flushes the whole cache. Pattern matching is a Redis
// facility; over-invalidating here keeps reads stale-free either way.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, _ string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.data = make(map[string]*memoryItem)
	mc.access = make(map[string]time.Time)
	return nil
}

func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	oldestTime := time.Now()
	for key, at := range mc.access {
		if at.Before(oldestTime) {
			oldestTime = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) sweepExpired() {
	for range mc.sweep.C {
		now := time.Now()
		mc.mu.Lock()
		for key, item := range mc.data {
			if item.expired(now) {
				delete(mc.data, key)
				delete(mc.access, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the background sweep.
func (mc *MemoryCache) Close() error {
	if mc.sweep != nil {
		mc.sweep.Stop()
	}
	return nil
}
