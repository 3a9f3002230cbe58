package source

import (
	"context"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// Refresh fetches upstream and replaces the cached payload, so pages opened
// afterwards do not wait on the webhook. A failed refresh keeps the old
// payload until it expires.
func (c *Cached) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do(CacheKey, func() (any, error) {
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
	return err
}

// StartRefresher refreshes the cache every period until ctx ends. Errors are
// logged and the schedule continues.
// Constraint: period should be shorter than the cache TTL.
func StartRefresher(ctx context.Context, c *Cached, period time.Duration) {
	if period <= 0 {
		return
	}
	l := logger.L()
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			if err := c.Refresh(ctx); err != nil {
				l.Warn("centers_refresh_error", "err", err)
				continue
			}
			l.Debug("centers_refresh_ok", "duration_ms", time.Since(start).Milliseconds())
		}
	}()
}
