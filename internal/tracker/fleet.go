package tracker

import (
	"context"
	"math"
	"time"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

// FleetBus is the public projection of an active bus.
type FleetBus struct {
	ID                 uint         `json:"id"`
	DriverID           string       `json:"driver_id"`
	BusNumber          string       `json:"bus_number"`
	PlateID            string       `json:"plate_id"`
	Lat                float64      `json:"lat"`
	Lng                float64      `json:"lng"`
	Stage              models.Stage `json:"stage"`
	RouteColor         string       `json:"route_color"`
	Fee                float64      `json:"fee"`
	RouteStart         string       `json:"route_start"`
	RouteEnd           string       `json:"route_end"`
	DisplayRoute       models.Path  `json:"display_route"`
	RouteLengthM       float64      `json:"route_length_m"`
	LastLocationUpdate *time.Time   `json:"last_location_update,omitempty"`
}

// NewFleetBus projects a record. The display route falls back to the main
// route when nothing more specific has been chosen yet. RouteLengthM is the
// main route length, rounded to the meter.
func NewFleetBus(rec models.BusService) FleetBus {
	display := rec.DisplayRoute
	if len(display) == 0 {
		display = rec.RouteWaypoints
	}
	return FleetBus{
		ID:                 rec.ID,
		DriverID:           rec.DriverID,
		BusNumber:          rec.BusNumber,
		PlateID:            rec.PlateID,
		Lat:                rec.Lat,
		Lng:                rec.Lng,
		Stage:              rec.Stage,
		RouteColor:         rec.RouteColor,
		Fee:                rec.Fee,
		RouteStart:         rec.RouteStart,
		RouteEnd:           rec.RouteEnd,
		DisplayRoute:       display.Clone(),
		RouteLengthM:       math.Round(geo.PathLength(rec.RouteWaypoints)),
		LastLocationUpdate: rec.LastLocationUpdate,
	}
}

// ListActive returns every approved bus whose service is running. It never
// writes and may serve a cached copy a few seconds old.
func (s *Service) ListActive(ctx context.Context) ([]FleetBus, error) {
	if fleet, ok := s.cache.Get(ctx); ok {
		return fleet, nil
	}

	recs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	fleet := make([]FleetBus, 0, len(recs))
	for _, rec := range recs {
		fleet = append(fleet, NewFleetBus(rec))
	}
	s.cache.Set(ctx, fleet)
	return fleet, nil
}
