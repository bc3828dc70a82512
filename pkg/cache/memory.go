package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	payload  []byte
	expireAt time.Time
}

// MemoryCache implements Service with an in-process map.
// Values are stored JSON-encoded so Get can decode into any destination.
// Expired entries are removed lazily on Get and swept in bulk by Set once
// the map holds more than SweepThreshold entries.
type MemoryCache struct {
	mu         sync.Mutex
	data       map[string]memoryItem
	threshold  int
	defaultTTL time.Duration
	now        func() time.Time
}

var (
	_ Service     = (*MemoryCache)(nil)
	_ TTLReporter = (*MemoryCache)(nil)
)

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		SweepThreshold: 1000,
		DefaultTTL:     time.Hour,
		Now:            time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &MemoryCache{
		data:       make(map[string]memoryItem),
		threshold:  cfg.SweepThreshold,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Now,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	mc.data[key] = memoryItem{payload: payload, expireAt: now.Add(expiration)}
	if len(mc.data) > mc.threshold {
		mc.sweepLocked(now)
	}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.data[key]
	if ok && !mc.now().Before(item.expireAt) {
		delete(mc.data, key)
		ok = false
	}
	mc.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.payload, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, ok := mc.data[key]
	if !ok {
		return 0, nil
	}
	return max(item.expireAt.Sub(mc.now()), 0), nil
}

// Len returns the number of held entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.data)
}

func (mc *MemoryCache) sweepLocked(now time.Time) {
	for key, item := range mc.data {
		if !now.Before(item.expireAt) {
			delete(mc.data, key)
		}
	}
}
