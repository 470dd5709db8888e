// Package cache keeps a short-lived copy of the public fleet view in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/tracker"
)

const DefaultFleetKey = "tracker:fleet:active"

// HitRecorder counts cache hits and misses.
type HitRecorder interface {
	FleetCacheHit(hit bool)
}

// RedisFleetCache implements tracker.FleetCache. Redis errors are logged and
// treated as misses.
type RedisFleetCache struct {
	rdb     redis.Cmdable
	key     string
	ttl     time.Duration
	metrics HitRecorder
}

func NewRedisFleetCache(rdb redis.Cmdable, ttl time.Duration, m HitRecorder) *RedisFleetCache {
	return &RedisFleetCache{rdb: rdb, key: DefaultFleetKey, ttl: ttl, metrics: m}
}

func (c *RedisFleetCache) Get(ctx context.Context) ([]tracker.FleetBus, bool) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).Warn("fleet cache get failed")
		}
		c.record(false)
		return nil, false
	}

	var fleet []tracker.FleetBus
	if err := json.Unmarshal(raw, &fleet); err != nil {
		logrus.WithError(err).Warn("fleet cache entry unreadable")
		c.record(false)
		return nil, false
	}
	c.record(true)
	return fleet, true
}

func (c *RedisFleetCache) Set(ctx context.Context, fleet []tracker.FleetBus) {
	if c.ttl <= 0 {
		return
	}
	b, err := json.Marshal(fleet)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		logrus.WithError(err).Warn("fleet cache set failed")
	}
}

func (c *RedisFleetCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		logrus.WithError(err).Warn("fleet cache invalidate failed")
	}
}

func (c *RedisFleetCache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.FleetCacheHit(hit)
	}
}
