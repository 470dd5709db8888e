package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

func newRecord(driverID string) *models.BusService {
	return &models.BusService{
		DriverID:   driverID,
		BusNumber:  "42",
		PlateID:    "KDA 123A",
		RouteStart: "Kencom",
		RouteEnd:   "Westlands",
		Status:     models.StatusPending,
		Stage:      models.StagePickup,
	}
}

func TestMemoryStoreCreateIsUniquePerDriver(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := newRecord("driver-1")
	require.NoError(t, s.Create(ctx, first))
	assert.NotZero(t, first.ID)

	assert.ErrorIs(t, s.Create(ctx, newRecord("driver-1")), ErrDuplicate)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStoreTransitionStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := newRecord("driver-1")
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.TransitionStatus(ctx, rec.ID, models.StatusPending, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	_, err = s.TransitionStatus(ctx, rec.ID, models.StatusPending, models.StatusRejected)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.TransitionStatus(ctx, 999, models.StatusPending, models.StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
}

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := newRecord("driver-1")
	require.NoError(t, s.Create(ctx, rec))

	_, err := s.StartSession(ctx, "driver-1", geo.Point{Lat: 1, Lng: 2}, time.Now())
	assert.ErrorIs(t, err, ErrConflict, "pending records cannot start")

	_, err = s.TransitionStatus(ctx, rec.ID, models.StatusPending, models.StatusApproved)
	require.NoError(t, err)

	started, err := s.StartSession(ctx, "driver-1", geo.Point{Lat: 1, Lng: 2}, time.Now())
	require.NoError(t, err)
	assert.True(t, started.IsActive)
	assert.Equal(t, int64(1), started.Version)

	moved, err := s.RecordPosition(ctx, "driver-1", geo.Point{Lat: 3, Lng: 4}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3.0, moved.Lat)
	assert.Equal(t, started.Version, moved.Version, "position writes do not bump the version")

	stopped, err := s.StopSession(ctx, "driver-1")
	require.NoError(t, err)
	assert.False(t, stopped.IsActive)

	_, err = s.StopSession(ctx, "driver-1")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.RecordPosition(ctx, "driver-1", geo.Point{Lat: 5, Lng: 6}, time.Now())
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.RecordPosition(ctx, "nobody", geo.Point{Lat: 5, Lng: 6}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateRoutingIsCompareAndSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newRecord("driver-1")))

	route := models.Path{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.01}}
	updated, err := s.UpdateRouting(ctx, "driver-1", 0, models.Routing{
		Stage:          models.StagePickup,
		RouteWaypoints: route,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.True(t, route.Equal(updated.RouteWaypoints))

	_, err = s.UpdateRouting(ctx, "driver-1", 0, models.Routing{Stage: models.StageRoute})
	assert.ErrorIs(t, err, ErrConflict, "a stale version loses")

	// callers mutating their copy must not leak into the store
	route[0].Lat = 50
	stored, err := s.GetByDriver(ctx, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.RouteWaypoints[0].Lat)
	assert.Equal(t, models.StagePickup, stored.Stage)
}

func TestMemoryStoreConcurrentRoutingWritesSerialize(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newRecord("driver-1")))

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateRouting(ctx, "driver-1", 0, models.Routing{Stage: models.StageRoute, ArrivedAtStart: true})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one writer may win a given version")
}

func TestMemoryStoreDeleteAndListActive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := newRecord("driver-a")
	b := newRecord("driver-b")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	for _, rec := range []*models.BusService{a, b} {
		_, err := s.TransitionStatus(ctx, rec.ID, models.StatusPending, models.StatusApproved)
		require.NoError(t, err)
	}
	_, err := s.StartSession(ctx, "driver-b", geo.Point{Lat: 1, Lng: 1}, time.Now())
	require.NoError(t, err)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "driver-b", active[0].DriverID)

	require.NoError(t, s.Delete(ctx, b.ID))
	assert.ErrorIs(t, s.Delete(ctx, b.ID), ErrNotFound)

	_, err = s.GetByDriver(ctx, "driver-b")
	assert.ErrorIs(t, err, ErrNotFound)

	// the driver may apply again once removed
	assert.NoError(t, s.Create(ctx, newRecord("driver-b")))
}

func TestMemoryStoreDeleteWhilePinging(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		s := NewMemoryStore()
		rec := newRecord("driver-a")
		require.NoError(t, s.Create(ctx, rec))
		_, err := s.TransitionStatus(ctx, rec.ID, models.StatusPending, models.StatusApproved)
		require.NoError(t, err)
		_, err = s.StartSession(ctx, "driver-a", geo.Point{Lat: 0, Lng: 0}, time.Now())
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = s.RecordPosition(ctx, "driver-a", geo.Point{Lat: float64(j) / 1000, Lng: 0}, time.Now())
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Delete(ctx, rec.ID))
		}()
		wg.Wait()

		_, err = s.GetByDriver(ctx, "driver-a")
		assert.ErrorIs(t, err, ErrNotFound)
	}
}
