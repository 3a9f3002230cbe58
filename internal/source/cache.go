package source

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
	"github.com/benjaminillouz/cemedis-website/internal/metrics"
)

// CacheKey is the redis key holding the last good payload.
const CacheKey = "centers:payload"

// Cached puts a redis payload cache and request coalescing in front of a
// fetcher. Pages loading at the same time share one upstream fetch.
// Constraint: only successful payloads are cached; redis errors degrade to
// a direct fetch.
type Cached struct {
	inner Fetcher
	rc    *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCached wraps inner. rc may be nil; ttl <= 0 disables the redis layer.
func NewCached(inner Fetcher, rc *redis.Client, ttl time.Duration) *Cached {
	return &Cached{inner: inner, rc: rc, ttl: ttl}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) useRedis() bool { return c.rc != nil && c.ttl > 0 }

func (c *Cached) Fetch(ctx context.Context) ([]byte, error) {
	if c.useRedis() {
		b, err := c.rc.Get(ctx, CacheKey).Bytes()
		switch {
		case err == nil:
			metrics.CacheHitsTotal.Inc()
			return b, nil
		case errors.Is(err, redis.Nil):
			metrics.CacheMissesTotal.Inc()
		default:
			logger.L().Warn("centers_cache_get_error", "err", err)
		}
	}
	v, err, shared := c.group.Do(CacheKey, func() (any, error) {
		b, err := c.inner.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if c.useRedis() {
			if err := c.rc.Set(ctx, CacheKey, b, c.ttl).Err(); err != nil {
				logger.L().Warn("centers_cache_set_error", "err", err)
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.L().Debug("centers_fetch_shared")
	}
	return v.([]byte), nil
}

// Invalidate drops the cached payload so the next fetch goes upstream.
func (c *Cached) Invalidate(ctx context.Context) error {
	if !c.useRedis() {
		return nil
	}
	return c.rc.Del(ctx, CacheKey).Err()
}
