package tracker

import (
	"context"

	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/directions"
	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

// advance runs the stage machine once for a position against a copy of the
// record's routing state and returns the resulting state. The pickup rules
// run first; if the copy is in the route stage afterwards, the route rules
// run on the same copy. A bus that arrives at the start is therefore checked
// against the route in the same ping, but no rule ever sees its own output
// twice.
//
// rec must have at least one waypoint. Gateway calls go through routes so
// that a re-evaluation after a lost write reuses earlier answers.
func (s *Service) advance(routes *pingRoutes, rec models.BusService, pos geo.Point) models.Routing {
	r := rec.Routing()
	log := logrus.WithFields(logrus.Fields{
		"driver_id": rec.DriverID,
		"lat":       pos.Lat,
		"lng":       pos.Lng,
	})

	if r.Stage == models.StagePickup {
		d := geo.Distance(pos, r.RouteWaypoints[0])
		switch {
		case d <= s.cfg.ArrivalRadiusM && !r.ArrivedAtStart:
			r.Stage = models.StageRoute
			r.ArrivedAtStart = true
			log.WithField("distance_m", d).Info("bus arrived at route start")

		case d > s.cfg.FarThresholdM:
			route, err := routes.compute("pickup",
				directions.PointPlace(pos), directions.AddressPlace(rec.RouteStart))
			if err != nil {
				log.WithError(err).Warn("pickup route failed, showing main route")
				r.DisplayRoute = r.RouteWaypoints.Clone()
				break
			}
			r.PickupRoute = models.Path(route.Waypoints)
			r.DisplayRoute = r.PickupRoute.Clone()

		default:
			r.DisplayRoute = r.RouteWaypoints.Clone()
		}
	}

	if r.Stage == models.StageRoute {
		d := geo.DistanceToPolyline(pos, r.RouteWaypoints)
		switch {
		case d > s.cfg.OffRouteThresholdM:
			log = log.WithField("offroute_m", d)
			route, err := routes.compute("reroute",
				directions.AddressPlace(rec.RouteStart), directions.AddressPlace(rec.RouteEnd))
			if err != nil {
				log.WithError(err).Warn("reroute failed, keeping current route")
				break
			}
			log.WithField("waypoints", len(route.Waypoints)).Info("bus off route, route replaced")
			r.RouteWaypoints = models.Path(route.Waypoints)
			r.RouteDurationSeconds = route.DurationSeconds
			r.DisplayRoute = r.RouteWaypoints.Clone()

		case len(r.DisplayRoute) == 0:
			r.DisplayRoute = r.RouteWaypoints.Clone()
		}
	}

	return r
}

// pingRoutes memoizes gateway answers for one ping. Every call shares a single
// deadline. However often the ping re-evaluates, the gateway is asked at
// most once per leg and the ping never waits longer than one timeout.
type pingRoutes struct {
	svc     *Service
	ctx     context.Context
	results map[string]routeResult
}

type routeResult struct {
	route directions.Route
	err   error
}

func (s *Service) newPingRoutes(ctx context.Context) (*pingRoutes, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if s.cfg.GatewayTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	}
	return &pingRoutes{svc: s, ctx: ctx, results: make(map[string]routeResult)}, cancel
}

func (p *pingRoutes) compute(purpose string, origin, destination directions.Place) (directions.Route, error) {
	key := purpose + "|" + origin.String() + "|" + destination.String()
	if r, ok := p.results[key]; ok {
		return r.route, r.err
	}
	route, err := p.svc.computeRoute(p.ctx, purpose, origin, destination)
	p.results[key] = routeResult{route: route, err: err}
	return route, err
}
