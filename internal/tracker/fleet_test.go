package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/directions"
	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

type mapCache struct {
	fleet       []FleetBus
	hit         bool
	sets        int
	invalidated int
}

func (c *mapCache) Get(context.Context) ([]FleetBus, bool) { return c.fleet, c.hit }

func (c *mapCache) Set(_ context.Context, fleet []FleetBus) {
	c.fleet = fleet
	c.sets++
}

func (c *mapCache) Invalidate(context.Context) {
	c.hit = false
	c.invalidated++
}

func TestListActiveShowsOnlyRunningBuses(t *testing.T) {
	st := store.NewMemoryStore()
	pickup := []geo.Point{farFromStart, routeStart}
	svc := newTestService(st, &fakeGateway{route: directions.Route{Waypoints: pickup}})
	ctx := context.Background()

	seedActive(t, st, "drv-pickup", farFromStart)
	seedActive(t, st, "drv-fresh", nearStart)
	seedActive(t, st, "drv-off", atStart)
	_, err := svc.StopService(ctx, "drv-off")
	require.NoError(t, err)

	pending := &models.BusService{DriverID: "drv-pending", Status: models.StatusPending, Stage: models.StagePickup}
	require.NoError(t, st.Create(ctx, pending))

	_, err = svc.ProcessPing(ctx, "drv-pickup", farFromStart.Lat, farFromStart.Lng)
	require.NoError(t, err)

	fleet, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, fleet, 2)

	byDriver := map[string]FleetBus{}
	for _, b := range fleet {
		byDriver[b.DriverID] = b
	}
	assert.True(t, models.Path(pickup).Equal(byDriver["drv-pickup"].DisplayRoute))
	assert.True(t, mainRoute().Equal(byDriver["drv-fresh"].DisplayRoute), "display falls back to the main route")
	assert.Equal(t, "42", byDriver["drv-fresh"].BusNumber)
	assert.Equal(t, nearStart.Lng, byDriver["drv-fresh"].Lng)
	// 0.02 degrees of longitude on the equator
	assert.InDelta(t, 2224, byDriver["drv-fresh"].RouteLengthM, 1)
}

func TestListActiveDoesNotWrite(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, &fakeGateway{})
	ctx := context.Background()
	seeded := seedActive(t, st, "drv-1", nearStart)

	_, err := svc.ListActive(ctx)
	require.NoError(t, err)

	after, err := st.GetByDriver(ctx, "drv-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.Version, after.Version)
	assert.Empty(t, after.DisplayRoute)
}

func TestListActiveUsesCache(t *testing.T) {
	st := store.NewMemoryStore()
	cache := &mapCache{}
	svc := newTestService(st, &fakeGateway{}, WithFleetCache(cache))
	ctx := context.Background()
	seedActive(t, st, "drv-1", nearStart)

	fleet, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, fleet, 1)
	assert.Equal(t, 1, cache.sets)

	cache.hit = true
	cache.fleet = []FleetBus{{DriverID: "cached"}}
	fleet, err = svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, fleet, 1)
	assert.Equal(t, "cached", fleet[0].DriverID)

	_, err = svc.StopService(ctx, "drv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	fleet, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, fleet)
}
