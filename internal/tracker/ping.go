package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/events"
	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

// Ping outcomes reported to Metrics.
const (
	PingRejected  = "rejected"
	PingRecorded  = "recorded"
	PingUnchanged = "unchanged"
	PingAdvanced  = "advanced"
	PingDropped   = "dropped"
	PingFailed    = "failed"
)

// ProcessPing records a driver's position and advances the stage machine.
//
// The raw position is always stored first. Routing changes are written with
// a compare-and-set on the record version; when another writer wins, the
// ping re-reads the record and evaluates again, up to Config.MaxAttempts
// times, after which the routing update is dropped. A dropped update is not
// an error: the next ping will evaluate from fresh state.
func (s *Service) ProcessPing(ctx context.Context, driverID string, lat, lng float64) (models.BusService, error) {
	start := time.Now()
	rec, outcome, err := s.processPing(ctx, driverID, geo.Point{Lat: lat, Lng: lng})
	s.metrics.ObservePing(outcome, time.Since(start))
	return rec, err
}

func (s *Service) processPing(ctx context.Context, driverID string, pos geo.Point) (models.BusService, string, error) {
	if err := pos.Validate(); err != nil {
		return models.BusService{}, PingRejected, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}

	rec, err := s.store.RecordPosition(ctx, driverID, pos, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return models.BusService{}, PingRejected, ErrNotActive
		}
		return models.BusService{}, PingFailed, fmt.Errorf("record position: %w", err)
	}
	s.notify(ctx, events.PositionUpdated, rec)

	if len(rec.RouteWaypoints) == 0 {
		return rec, PingRecorded, nil
	}

	routes, cancel := s.newPingRoutes(ctx)
	defer cancel()

	log := logrus.WithField("driver_id", driverID)
	for attempt := 1; ; attempt++ {
		next := s.advance(routes, rec, pos)
		if next.Equal(rec.Routing()) {
			return rec, PingUnchanged, nil
		}

		updated, err := s.store.UpdateRouting(ctx, driverID, rec.Version, next)
		if err == nil {
			if updated.Stage != rec.Stage {
				s.metrics.StageTransition(updated.Stage)
				s.notify(ctx, events.StageChanged, updated)
			}
			return updated, PingAdvanced, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			if errors.Is(err, store.ErrNotFound) {
				return models.BusService{}, PingRejected, ErrNotActive
			}
			return models.BusService{}, PingFailed, fmt.Errorf("update routing: %w", err)
		}

		if attempt >= s.cfg.MaxAttempts {
			log.WithField("attempts", attempt).Warn("routing update lost to concurrent writers, dropping ping")
			return rec, PingDropped, nil
		}

		// someone else changed the record; start over from what they wrote
		rec, err = s.store.GetByDriver(ctx, driverID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.BusService{}, PingRejected, ErrNotActive
			}
			return models.BusService{}, PingFailed, fmt.Errorf("reload record: %w", err)
		}
		if !rec.IsActive || rec.Status != models.StatusApproved {
			return models.BusService{}, PingRejected, ErrNotActive
		}
		if len(rec.RouteWaypoints) == 0 {
			return rec, PingRecorded, nil
		}
	}
}
