package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/geo"
)

func TestPathWKBRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path Path
	}{
		{"line", Path{{Lat: -1.2864, Lng: 36.8172}, {Lat: -1.2650, Lng: 36.8030}, {Lat: -1.2630, Lng: 36.8000}}},
		{"single vertex", Path{{Lat: -1.2864, Lng: 36.8172}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.path.Value()
			require.NoError(t, err)

			var got Path
			require.NoError(t, got.Scan(v))
			assert.True(t, tt.path.Equal(got), "got %v", got)
		})
	}
}

func TestEmptyPathIsNull(t *testing.T) {
	v, err := Path(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	got := Path{{Lat: 1, Lng: 1}}
	require.NoError(t, got.Scan(nil))
	assert.Empty(t, got)

	assert.Error(t, got.Scan("not bytes"))
}

func TestPathCloneIsIndependent(t *testing.T) {
	p := Path{geo.Point{Lat: 1, Lng: 2}}
	q := p.Clone()
	q[0].Lat = 5
	assert.Equal(t, 1.0, p[0].Lat)
	assert.Nil(t, Path(nil).Clone())
}

func TestRoutingEqual(t *testing.T) {
	b := BusService{
		Stage:          StageRoute,
		ArrivedAtStart: true,
		RouteWaypoints: Path{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
	}
	r := b.Routing()
	assert.True(t, r.Equal(b.Routing()))

	r.DisplayRoute = r.RouteWaypoints.Clone()
	assert.False(t, r.Equal(b.Routing()))

	b.ApplyRouting(r)
	assert.True(t, r.Equal(b.Routing()))
}
