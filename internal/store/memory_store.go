package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

// MemoryStore keeps records in process memory. The index maps are guarded by
// one RWMutex that is only write-locked on create and delete; each record has
// its own mutex so writes to different drivers never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint
	byID     map[uint]*memEntry
	byDriver map[string]*memEntry
}

type memEntry struct {
	// driverID never changes after Create, so the index can read it
	// without the record lock.
	driverID string

	mu      sync.Mutex
	rec     models.BusService
	deleted bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[uint]*memEntry),
		byDriver: make(map[string]*memEntry),
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.BusService) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDriver[rec.DriverID]; exists {
		return ErrDuplicate
	}
	s.nextID++
	now := time.Now().UTC()
	rec.ID = s.nextID
	rec.CreatedAt = now
	rec.UpdatedAt = now

	e := &memEntry{driverID: rec.DriverID, rec: rec.Clone()}
	s.byID[rec.ID] = e
	s.byDriver[rec.DriverID] = e
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint) (models.BusService, error) {
	s.mu.RLock()
	e := s.byID[id]
	s.mu.RUnlock()
	return readEntry(e)
}

func (s *MemoryStore) GetByDriver(ctx context.Context, driverID string) (models.BusService, error) {
	return readEntry(s.lookupDriver(driverID))
}

func (s *MemoryStore) List(ctx context.Context, status models.ServiceStatus) ([]models.BusService, error) {
	return s.filter(func(r models.BusService) bool {
		return status == "" || r.Status == status
	}), nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]models.BusService, error) {
	return s.filter(func(r models.BusService) bool {
		return r.Status == models.StatusApproved && r.IsActive
	}), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
		delete(s.byDriver, e.driverID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, id uint, from, to models.ServiceStatus) (models.BusService, error) {
	s.mu.RLock()
	e := s.byID[id]
	s.mu.RUnlock()
	return mutate(e, func(r *models.BusService) bool {
		if r.Status != from {
			return false
		}
		r.Status = to
		return true
	})
}

func (s *MemoryStore) StartSession(ctx context.Context, driverID string, pos geo.Point, at time.Time) (models.BusService, error) {
	return mutate(s.lookupDriver(driverID), func(r *models.BusService) bool {
		if r.Status != models.StatusApproved {
			return false
		}
		ts := at
		r.IsActive = true
		r.Stage = models.StagePickup
		r.ArrivedAtStart = false
		r.DisplayRoute = nil
		r.Lat, r.Lng = pos.Lat, pos.Lng
		r.LastLocationUpdate = &ts
		r.Version++
		return true
	})
}

func (s *MemoryStore) StopSession(ctx context.Context, driverID string) (models.BusService, error) {
	return mutate(s.lookupDriver(driverID), func(r *models.BusService) bool {
		if !r.IsActive {
			return false
		}
		r.IsActive = false
		r.Version++
		return true
	})
}

func (s *MemoryStore) RecordPosition(ctx context.Context, driverID string, pos geo.Point, at time.Time) (models.BusService, error) {
	return mutate(s.lookupDriver(driverID), func(r *models.BusService) bool {
		if r.Status != models.StatusApproved || !r.IsActive {
			return false
		}
		ts := at
		r.Lat, r.Lng = pos.Lat, pos.Lng
		r.LastLocationUpdate = &ts
		return true
	})
}

func (s *MemoryStore) UpdateRouting(ctx context.Context, driverID string, expectedVersion int64, routing models.Routing) (models.BusService, error) {
	return mutate(s.lookupDriver(driverID), func(r *models.BusService) bool {
		if r.Version != expectedVersion {
			return false
		}
		r.ApplyRouting(models.Routing{
			Stage:                routing.Stage,
			ArrivedAtStart:       routing.ArrivedAtStart,
			RouteWaypoints:       routing.RouteWaypoints.Clone(),
			RouteDurationSeconds: routing.RouteDurationSeconds,
			DisplayRoute:         routing.DisplayRoute.Clone(),
			PickupRoute:          routing.PickupRoute.Clone(),
		})
		r.Version++
		return true
	})
}

func (s *MemoryStore) lookupDriver(driverID string) *memEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byDriver[driverID]
}

func (s *MemoryStore) filter(keep func(models.BusService) bool) []models.BusService {
	s.mu.RLock()
	entries := make([]*memEntry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]models.BusService, 0, len(entries))
	for _, e := range entries {
		rec, err := readEntry(e)
		if err != nil || !keep(rec) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func readEntry(e *memEntry) (models.BusService, error) {
	if e == nil {
		return models.BusService{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return models.BusService{}, ErrNotFound
	}
	return e.rec.Clone(), nil
}

// mutate applies fn under the record lock. fn returns false when its
// precondition does not hold, which maps to ErrConflict.
func mutate(e *memEntry, fn func(*models.BusService) bool) (models.BusService, error) {
	if e == nil {
		return models.BusService{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return models.BusService{}, ErrNotFound
	}

	next := e.rec.Clone()
	if !fn(&next) {
		return models.BusService{}, ErrConflict
	}
	next.UpdatedAt = time.Now().UTC()
	e.rec = next
	return next.Clone(), nil
}
