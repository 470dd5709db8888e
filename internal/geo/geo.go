// Package geo holds the distance primitives used by the geofencing logic.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371000.0

var ErrInvalidPoint = errors.New("latitude must be between -90 and 90 and longitude between -180 and 180")

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return ErrInvalidPoint
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidPoint
	}
	return nil
}

// Distance calculates the great-circle distance between two points in meters
// using the haversine formula.
func Distance(p1, p2 Point) float64 {
	dLat := toRadians(p2.Lat - p1.Lat)
	dLon := toRadians(p2.Lng - p1.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(p1.Lat))*math.Cos(toRadians(p2.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// DistanceToPolyline returns the minimum distance in meters from p to any
// segment of line. A single-point line degrades to point distance and an
// empty line is infinitely far away.
func DistanceToPolyline(p Point, line []Point) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, line[0])
	}

	best := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := distanceToSegment(p, line[i], line[i+1]); d < best {
			best = d
		}
	}
	return best
}

// PathLength sums the segment lengths of line in meters.
func PathLength(line []Point) float64 {
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		total += Distance(line[i], line[i+1])
	}
	return total
}

// distanceToSegment projects the segment into a local equirectangular plane
// centred on p, finds the closest point on the segment there and measures the
// haversine distance to it. Segments are short (tens to hundreds of meters) so
// the projection error is negligible.
func distanceToSegment(p, a, b Point) float64 {
	cosLat := math.Cos(toRadians(p.Lat))
	ax, ay := project(p, a, cosLat)
	bx, by := project(p, b, cosLat)

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		// p is the origin of the plane
		t = -(ax*dx + ay*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}

	closest := Point{
		Lat: p.Lat + toDegrees((ay+t*dy)/EarthRadiusM),
		Lng: normalizeLng(p.Lng + toDegrees((ax+t*dx)/(EarthRadiusM*cosLat))),
	}
	if cosLat == 0 {
		closest.Lng = p.Lng
	}
	return Distance(p, closest)
}

// project maps q into meters east/north of origin, unwrapping longitude
// across the antimeridian.
func project(origin, q Point, cosLat float64) (x, y float64) {
	dLng := q.Lng - origin.Lng
	if dLng > 180 {
		dLng -= 360
	} else if dLng < -180 {
		dLng += 360
	}
	x = toRadians(dLng) * EarthRadiusM * cosLat
	y = toRadians(q.Lat-origin.Lat) * EarthRadiusM
	return x, y
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

// toRadians converts an angle from degrees to radians.
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// toDegrees converts an angle from radians to degrees.
func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
