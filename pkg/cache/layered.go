package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: Service, usually Redis).
// A remote hit is promoted to memory for promoteTTL, or for the remote
// entry's remaining lifetime when the remote reports a shorter one.
type LayeredCache struct {
	memCache   *MemoryCache
	remote     Service
	promoteTTL time.Duration
}

var _ Service = (*LayeredCache)(nil)

// NewLayeredCache creates a layered cache in front of remote.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{PromoteTTL: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache:   NewMemoryCache(cfg.MemoryOptions...),
		remote:     remote,
		promoteTTL: cfg.PromoteTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	// Write-through: remote first, then memory
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.memCache.Set(ctx, key, value, expiration)
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}

	_ = lc.memCache.Set(ctx, key, dest, lc.promotionTTL(ctx, key))
	return nil
}

func (lc *LayeredCache) promotionTTL(ctx context.Context, key string) time.Duration {
	r, ok := lc.remote.(TTLReporter)
	if !ok {
		return lc.promoteTTL
	}
	left, err := r.TTL(ctx, key)
	if err != nil || left <= 0 {
		return lc.promoteTTL
	}
	return min(left, lc.promoteTTL)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}
