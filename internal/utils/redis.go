// Package utils opens the Redis and PostgreSQL connections from the
// environment.
package utils

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// OpenRedis returns nil when addr is empty.
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// RedisOptionsFromEnv reads REDIS_URL, or else REDIS_HOST, REDIS_PORT,
// REDIS_PASS and REDIS_DB. ok is false when REDIS_ENABLED is "false" or
// nothing is configured.
// Constraint: a bad REDIS_DB falls back to 0; a bad REDIS_URL disables redis.
func RedisOptionsFromEnv() (opts *redis.Options, ok bool) {
	if os.Getenv("REDIS_ENABLED") == "false" {
		return nil, false
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		o, err := redis.ParseURL(raw)
		if err != nil {
			logger.L().Error("redis_url_error", "err", err)
			return nil, false
		}
		return o, true
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return nil, false
	}
	db := 0
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && n >= 0 {
		db = n
	}
	return &redis.Options{
		Addr:        net.JoinHostPort(host, envOr("REDIS_PORT", "6379")),
		Password:    os.Getenv("REDIS_PASS"),
		DB:          db,
		DialTimeout: 2 * time.Second,
	}, true
}

// OpenRedisFromEnv returns nil when redis is not configured; the payload
// cache is optional.
func OpenRedisFromEnv() *redis.Client {
	opts, ok := RedisOptionsFromEnv()
	if !ok {
		return nil
	}
	logger.L().Debug("redis_env", "addr", opts.Addr, "db", opts.DB)
	return redis.NewClient(opts)
}
