// Package directions consumes an external driving-directions provider.
package directions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bus_tracker/internal/geo"
)

var (
	// ErrNoRoute means the provider answered but found no drivable path.
	ErrNoRoute = errors.New("no route found")
	// ErrProvider wraps any non-success answer from the provider.
	ErrProvider = errors.New("directions provider error")
)

// Place is either a free-text address or a coordinate.
type Place struct {
	Address string
	Point   *geo.Point
}

// AddressPlace builds a Place from an address string.
func AddressPlace(address string) Place {
	return Place{Address: strings.TrimSpace(address)}
}

// PointPlace builds a Place from a coordinate.
func PointPlace(p geo.Point) Place {
	return Place{Point: &p}
}

// String renders the place the way the provider expects it in a query string.
func (p Place) String() string {
	if p.Point != nil {
		return fmt.Sprintf("%.6f,%.6f", p.Point.Lat, p.Point.Lng)
	}
	return p.Address
}

// IsZero reports whether neither an address nor a point was given.
func (p Place) IsZero() bool {
	return p.Point == nil && p.Address == ""
}

// Route is an ordered drivable path plus the provider's duration estimate.
type Route struct {
	Waypoints       []geo.Point
	DurationSeconds float64
}

// Gateway computes a drivable path between two places, optionally through a
// via-point. Implementations may be slow; callers bound every call with a
// context deadline.
type Gateway interface {
	ComputeRoute(ctx context.Context, origin, destination Place, via *Place) (Route, error)
}

// GatewayFunc adapts a plain function to the Gateway interface.
type GatewayFunc func(ctx context.Context, origin, destination Place, via *Place) (Route, error)

// ComputeRoute calls f.
func (f GatewayFunc) ComputeRoute(ctx context.Context, origin, destination Place, via *Place) (Route, error) {
	return f(ctx, origin, destination, via)
}
