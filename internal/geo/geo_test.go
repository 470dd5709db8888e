package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// metersPerDegLat is the haversine length of one degree of latitude.
var metersPerDegLat = EarthRadiusM * math.Pi / 180

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		p1, p2   Point
		expected float64
		delta    float64
	}{
		{"same point", Point{-1.2921, 36.8219}, Point{-1.2921, 36.8219}, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, metersPerDegLat, 1e-6},
		{"one degree of longitude on equator", Point{0, 0}, Point{0, 1}, metersPerDegLat, 1e-6},
		{"across the antimeridian", Point{0, 179.9995}, Point{0, -179.9995}, 0.001 * metersPerDegLat, 0.01},
		{"nairobi to mombasa", Point{-1.2921, 36.8219}, Point{-4.0435, 39.6682}, 440000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.p1, tt.p2), tt.delta)
			assert.InDelta(t, Distance(tt.p1, tt.p2), Distance(tt.p2, tt.p1), 1e-9, "distance should be symmetric")
		})
	}
}

func TestDistanceIsMonotonic(t *testing.T) {
	origin := Point{Lat: 14.5995, Lng: 120.9842}
	prev := 0.0
	for i := 1; i <= 20; i++ {
		d := Distance(origin, Point{Lat: origin.Lat + float64(i)*0.001, Lng: origin.Lng})
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestDistanceToPolyline(t *testing.T) {
	line := []Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.01}, {Lat: 0.01, Lng: 0.01}}

	tests := []struct {
		name     string
		p        Point
		line     []Point
		expected float64
		delta    float64
	}{
		{"empty polyline", Point{0, 0}, nil, math.Inf(1), 0},
		{"single point polyline", Point{0.001, 0}, []Point{{0, 0}}, 0.001 * metersPerDegLat, 1e-6},
		{"on a vertex", Point{0, 0.01}, line, 0, 1e-6},
		{"perpendicular to first segment", Point{0.0027, 0.005}, line, 0.0027 * metersPerDegLat, 0.5},
		{"beyond the start is clamped to the vertex", Point{0, -0.001}, line, 0.001 * metersPerDegLat, 0.5},
		{"closest to the second segment", Point{0.005, 0.0115}, line, 0.0015 * metersPerDegLat, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceToPolyline(tt.p, tt.line)
			if math.IsInf(tt.expected, 1) {
				assert.True(t, math.IsInf(got, 1))
				return
			}
			assert.InDelta(t, tt.expected, got, tt.delta)
		})
	}
}

func TestDistanceToPolylineAcrossAntimeridian(t *testing.T) {
	line := []Point{{Lat: 0, Lng: 179.99}, {Lat: 0, Lng: -179.99}}
	got := DistanceToPolyline(Point{Lat: 0.001, Lng: 180}, line)
	assert.InDelta(t, 0.001*metersPerDegLat, got, 0.5)
}

func TestPathLength(t *testing.T) {
	line := []Point{{0, 0}, {0.001, 0}, {0.002, 0}}
	assert.InDelta(t, 0.002*metersPerDegLat, PathLength(line), 1e-6)
	assert.Zero(t, PathLength(nil))
}

func TestPointValidate(t *testing.T) {
	assert.NoError(t, Point{Lat: -1.29, Lng: 36.82}.Validate())
	assert.ErrorIs(t, Point{Lat: 91, Lng: 0}.Validate(), ErrInvalidPoint)
	assert.ErrorIs(t, Point{Lat: 0, Lng: -181}.Validate(), ErrInvalidPoint)
	assert.ErrorIs(t, Point{Lat: math.NaN(), Lng: 0}.Validate(), ErrInvalidPoint)
}
