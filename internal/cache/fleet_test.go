package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracker"
)

type hits struct{ hit, miss int }

func (h *hits) FleetCacheHit(hit bool) {
	if hit {
		h.hit++
	} else {
		h.miss++
	}
}

func newCache(t *testing.T, ttl time.Duration) (*RedisFleetCache, *miniredis.Miniredis, *hits) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	h := &hits{}
	return NewRedisFleetCache(rdb, ttl, h), mr, h
}

func TestRedisFleetCacheRoundTrip(t *testing.T) {
	c, mr, h := newCache(t, 2*time.Second)
	ctx := context.Background()

	_, ok := c.Get(ctx)
	assert.False(t, ok)

	fleet := []tracker.FleetBus{{
		DriverID:     "drv-1",
		BusNumber:    "42",
		Stage:        models.StageRoute,
		DisplayRoute: models.Path{{Lat: 1, Lng: 2}, {Lat: 1.001, Lng: 2.001}},
	}}
	c.Set(ctx, fleet)

	got, ok := c.Get(ctx)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "drv-1", got[0].DriverID)
	assert.True(t, fleet[0].DisplayRoute.Equal(got[0].DisplayRoute))
	assert.Equal(t, 1, h.hit)
	assert.Equal(t, 1, h.miss)

	mr.FastForward(3 * time.Second)
	_, ok = c.Get(ctx)
	assert.False(t, ok, "entries expire after the ttl")
}

func TestRedisFleetCacheInvalidate(t *testing.T) {
	c, _, _ := newCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, []tracker.FleetBus{{DriverID: "drv-1"}})
	c.Invalidate(ctx)

	_, ok := c.Get(ctx)
	assert.False(t, ok)
}

func TestRedisFleetCacheDisabledWithZeroTTL(t *testing.T) {
	c, mr, _ := newCache(t, 0)
	c.Set(context.Background(), []tracker.FleetBus{{DriverID: "drv-1"}})
	assert.False(t, mr.Exists(DefaultFleetKey))
}

func TestRedisFleetCacheUnreachableIsAMiss(t *testing.T) {
	c, mr, h := newCache(t, time.Minute)
	mr.Close()

	_, ok := c.Get(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, h.miss)
}
