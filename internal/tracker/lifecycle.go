package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/directions"
	"bus_tracker/internal/events"
	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

// Application is what a driver submits.
type Application struct {
	DriverID      string
	BusNumber     string
	PlateID       string
	RouteStart    string
	RouteEnd      string
	DriverLicense string
	Fee           float64
	RouteColor    string
}

func (a Application) validate() error {
	fields := []struct{ name, value string }{
		{"driver_id", a.DriverID},
		{"bus_number", a.BusNumber},
		{"plate_id", a.PlateID},
		{"route_start", a.RouteStart},
		{"route_end", a.RouteEnd},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidApplication, strings.Join(missing, ", "))
	}
	if a.Fee < 0 {
		return fmt.Errorf("%w: fee must not be negative", ErrInvalidApplication)
	}
	return nil
}

// Submit creates a pending application and starts computing its route in
// the background. A failed route computation leaves the waypoints empty;
// pings then skip routing until an admin recomputes the route.
func (s *Service) Submit(ctx context.Context, app Application) (models.BusService, error) {
	if err := app.validate(); err != nil {
		return models.BusService{}, err
	}
	color := strings.TrimSpace(app.RouteColor)
	if color == "" {
		color = models.DefaultRouteColor
	}

	rec := &models.BusService{
		DriverID:      strings.TrimSpace(app.DriverID),
		BusNumber:     strings.TrimSpace(app.BusNumber),
		PlateID:       strings.TrimSpace(app.PlateID),
		RouteStart:    strings.TrimSpace(app.RouteStart),
		RouteEnd:      strings.TrimSpace(app.RouteEnd),
		DriverLicense: strings.TrimSpace(app.DriverLicense),
		Fee:           app.Fee,
		RouteColor:    color,
		Status:        models.StatusPending,
		Stage:         models.StagePickup,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.BusService{}, ErrDuplicateApplication
		}
		return models.BusService{}, fmt.Errorf("create application: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"id":        rec.ID,
		"driver_id": rec.DriverID,
	}).Info("bus service application submitted")
	s.notify(ctx, events.ApplicationSubmitted, *rec)

	driverID := rec.DriverID
	if !s.goJob(func(ctx context.Context) { s.initialRoute(ctx, driverID) }) {
		logrus.WithField("driver_id", driverID).Warn("shutting down, initial route not computed")
	}

	return rec.Clone(), nil
}

// initialRoute fills in the waypoints of a fresh application unless
// something else already did.
func (s *Service) initialRoute(ctx context.Context, driverID string) {
	log := logrus.WithField("driver_id", driverID)

	rec, err := s.store.GetByDriver(ctx, driverID)
	if err != nil {
		log.WithError(err).Warn("initial route: record disappeared")
		return
	}
	route, err := s.computeRoute(ctx, "initial",
		directions.AddressPlace(rec.RouteStart), directions.AddressPlace(rec.RouteEnd))
	if err != nil {
		log.WithError(err).Warn("initial route computation failed")
		return
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if len(rec.RouteWaypoints) > 0 {
			return
		}
		next := rec.Routing()
		next.RouteWaypoints = models.Path(route.Waypoints)
		next.RouteDurationSeconds = route.DurationSeconds
		updated, err := s.store.UpdateRouting(ctx, driverID, rec.Version, next)
		if err == nil {
			log.WithField("waypoints", len(updated.RouteWaypoints)).Info("initial route stored")
			s.notify(ctx, events.RouteComputed, updated)
			return
		}
		if !errors.Is(err, store.ErrConflict) {
			log.WithError(err).Warn("initial route could not be stored")
			return
		}
		if rec, err = s.store.GetByDriver(ctx, driverID); err != nil {
			return
		}
	}
}

// Approve moves a pending application to approved.
func (s *Service) Approve(ctx context.Context, id uint) (models.BusService, error) {
	return s.decide(ctx, id, models.StatusApproved, events.ApplicationApproved)
}

// Reject moves a pending application to rejected.
func (s *Service) Reject(ctx context.Context, id uint) (models.BusService, error) {
	return s.decide(ctx, id, models.StatusRejected, events.ApplicationRejected)
}

func (s *Service) decide(ctx context.Context, id uint, to models.ServiceStatus, typ events.Type) (models.BusService, error) {
	rec, err := s.store.TransitionStatus(ctx, id, models.StatusPending, to)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.BusService{}, ErrRecordNotFound
	case errors.Is(err, store.ErrConflict):
		return models.BusService{}, ErrInvalidTransition
	case err != nil:
		return models.BusService{}, fmt.Errorf("transition to %s: %w", to, err)
	}

	logrus.WithFields(logrus.Fields{
		"id":        rec.ID,
		"driver_id": rec.DriverID,
		"status":    to,
	}).Info("bus service application decided")
	s.metrics.ApplicationDecided(to)
	s.notify(ctx, typ, rec)
	return rec, nil
}

// StartService begins a tracking session for an approved driver.
func (s *Service) StartService(ctx context.Context, driverID string, lat, lng float64) (models.BusService, error) {
	pos := geo.Point{Lat: lat, Lng: lng}
	if err := pos.Validate(); err != nil {
		return models.BusService{}, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}

	rec, err := s.store.StartSession(ctx, driverID, pos, s.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.BusService{}, ErrRecordNotFound
	case errors.Is(err, store.ErrConflict):
		return models.BusService{}, ErrNotApproved
	case err != nil:
		return models.BusService{}, fmt.Errorf("start service: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"driver_id": driverID,
		"lat":       lat,
		"lng":       lng,
	}).Info("bus service started")
	s.cache.Invalidate(ctx)
	s.notify(ctx, events.ServiceStarted, rec)
	return rec, nil
}

// StopService ends the driver's tracking session.
func (s *Service) StopService(ctx context.Context, driverID string) (models.BusService, error) {
	rec, err := s.store.StopSession(ctx, driverID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.BusService{}, ErrRecordNotFound
	case errors.Is(err, store.ErrConflict):
		return models.BusService{}, ErrNotActive
	case err != nil:
		return models.BusService{}, fmt.Errorf("stop service: %w", err)
	}

	logrus.WithField("driver_id", driverID).Info("bus service stopped")
	s.cache.Invalidate(ctx)
	s.notify(ctx, events.ServiceStopped, rec)
	return rec, nil
}

// Remove deletes an application outright.
func (s *Service) Remove(ctx context.Context, id uint) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("remove application: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"id":        id,
		"driver_id": rec.DriverID,
	}).Info("bus service application removed")
	s.cache.Invalidate(ctx)
	s.notify(ctx, events.ApplicationRemoved, rec)
	return nil
}

// RecomputeRoute recomputes the main route from start to end and replaces
// the stored waypoints on success. On failure nothing changes.
func (s *Service) RecomputeRoute(ctx context.Context, id uint) (models.BusService, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return models.BusService{}, err
	}
	route, err := s.computeRoute(ctx, "admin",
		directions.AddressPlace(rec.RouteStart), directions.AddressPlace(rec.RouteEnd))
	if err != nil {
		return models.BusService{}, fmt.Errorf("%w: %v", ErrRouteComputationFailed, err)
	}

	for attempt := 1; ; attempt++ {
		next := withMainRoute(rec, route)

		updated, err := s.store.UpdateRouting(ctx, rec.DriverID, rec.Version, next)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"id":        id,
				"waypoints": len(updated.RouteWaypoints),
			}).Info("route recomputed")
			s.notify(ctx, events.RouteComputed, updated)
			return updated, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= s.cfg.MaxAttempts {
			if errors.Is(err, store.ErrNotFound) {
				return models.BusService{}, ErrRecordNotFound
			}
			return models.BusService{}, fmt.Errorf("store recomputed route: %w", err)
		}
		if rec, err = s.Get(ctx, id); err != nil {
			return models.BusService{}, err
		}
	}
}

// withMainRoute replaces the main route. A display route that showed the old
// main route follows it, a pickup route stays, and anything else is cleared.
func withMainRoute(rec models.BusService, route directions.Route) models.Routing {
	next := rec.Routing()
	next.RouteWaypoints = models.Path(route.Waypoints)
	next.RouteDurationSeconds = route.DurationSeconds

	switch {
	case rec.IsActive && rec.Stage == models.StageRoute,
		next.DisplayRoute.Equal(rec.RouteWaypoints):
		next.DisplayRoute = next.RouteWaypoints.Clone()
	case len(next.DisplayRoute) > 0 && next.DisplayRoute.Equal(rec.PickupRoute):
		// still heading to the start
	default:
		next.DisplayRoute = nil
	}
	return next
}

// Get returns an application by id.
func (s *Service) Get(ctx context.Context, id uint) (models.BusService, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.BusService{}, ErrRecordNotFound
	}
	return rec, err
}

// GetByDriver returns the driver's application.
func (s *Service) GetByDriver(ctx context.Context, driverID string) (models.BusService, error) {
	rec, err := s.store.GetByDriver(ctx, driverID)
	if errors.Is(err, store.ErrNotFound) {
		return models.BusService{}, ErrRecordNotFound
	}
	return rec, err
}

// List returns applications, optionally only those with the given status.
func (s *Service) List(ctx context.Context, status models.ServiceStatus) ([]models.BusService, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidApplication, status)
	}
	return s.store.List(ctx, status)
}
