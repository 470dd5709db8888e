// Package tracker implements the bus service lifecycle, the location ping
// state machine and the public fleet view on top of a store.Store.
package tracker

import (
	"context"
	"sync"
	"time"

	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/directions"
	"bus_tracker/internal/events"
	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

// Config holds the geofence thresholds and retry limits.
type Config struct {
	ArrivalRadiusM     float64
	FarThresholdM      float64
	OffRouteThresholdM float64
	GatewayTimeout     time.Duration
	// MaxAttempts bounds how often a ping's routing write is retried after
	// losing a race with another writer.
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		ArrivalRadiusM:     100,
		FarThresholdM:      200,
		OffRouteThresholdM: 150,
		GatewayTimeout:     8 * time.Second,
		MaxAttempts:        2,
	}
}

// Metrics receives tracker measurements.
type Metrics interface {
	ObservePing(outcome string, d time.Duration)
	ObserveGateway(purpose string, d time.Duration, err error)
	StageTransition(to models.Stage)
	ApplicationDecided(status models.ServiceStatus)
}

// FleetCache holds a short-lived copy of the fleet view. Misses and errors
// fall through to the store.
type FleetCache interface {
	Get(ctx context.Context) ([]FleetBus, bool)
	Set(ctx context.Context, fleet []FleetBus)
	Invalidate(ctx context.Context)
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithFleetCache(c FleetCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is safe for concurrent use.
type Service struct {
	store     store.Store
	gateway   directions.Gateway
	cfg       Config
	publisher events.Publisher
	metrics   Metrics
	cache     FleetCache
	now       func() time.Time

	// background route jobs; jobMu orders jobs.Add against Shutdown
	jobMu     sync.Mutex
	closed    bool
	jobs      sync.WaitGroup
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

func NewService(st store.Store, gw directions.Gateway, cfg Config, opts ...Option) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:     st,
		gateway:   gw,
		cfg:       cfg,
		publisher: events.Noop{},
		metrics:   noopMetrics{},
		cache:     noopCache{},
		now:       func() time.Time { return time.Now().UTC() },
		jobCtx:    ctx,
		cancelJob: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until background route jobs started so far have finished.
func (s *Service) Wait() {
	s.jobs.Wait()
}

// Shutdown cancels background route jobs and waits for them, or until ctx
// is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	s.closed = true
	s.jobMu.Unlock()
	s.cancelJob()
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// goJob runs fn in the background unless the service is shutting down.
func (s *Service) goJob(fn func(ctx context.Context)) bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.closed {
		return false
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		fn(s.jobCtx)
	}()
	return true
}

// computeRoute calls the gateway under the configured deadline.
func (s *Service) computeRoute(ctx context.Context, purpose string, origin, destination directions.Place) (directions.Route, error) {
	if s.cfg.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GatewayTimeout)
		defer cancel()
	}

	start := time.Now()
	route, err := s.gateway.ComputeRoute(ctx, origin, destination, nil)
	if err == nil && len(route.Waypoints) == 0 {
		err = directions.ErrNoRoute
	}
	s.metrics.ObserveGateway(purpose, time.Since(start), err)
	if err != nil {
		return directions.Route{}, err
	}
	return route, nil
}

func (s *Service) notify(ctx context.Context, typ events.Type, rec models.BusService) {
	ev := events.Event{
		Type:       typ,
		ID:         rec.ID,
		DriverID:   rec.DriverID,
		BusNumber:  rec.BusNumber,
		Status:     string(rec.Status),
		Stage:      string(rec.Stage),
		IsActive:   rec.IsActive,
		Lat:        rec.Lat,
		Lng:        rec.Lng,
		RouteColor: rec.RouteColor,
		Timestamp:  s.now(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":     typ,
			"driver_id": rec.DriverID,
		}).WithError(err).Warn("event publish failed")
	}
}

type noopMetrics struct{}

func (noopMetrics) ObservePing(string, time.Duration)           {}
func (noopMetrics) ObserveGateway(string, time.Duration, error) {}
func (noopMetrics) StageTransition(models.Stage)                {}
func (noopMetrics) ApplicationDecided(models.ServiceStatus)     {}

type noopCache struct{}

func (noopCache) Get(context.Context) ([]FleetBus, bool) { return nil, false }
func (noopCache) Set(context.Context, []FleetBus)        {}
func (noopCache) Invalidate(context.Context)             {}
