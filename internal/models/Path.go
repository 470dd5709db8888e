package models

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"bus_tracker/internal/geo"
)

// Path is an ordered list of coordinates. It is stored in Postgres as a WKB
// LINESTRING (bytea); an empty path is stored as NULL.
type Path []geo.Point

// GormDataType tells GORM which column type to migrate to.
func (Path) GormDataType() string {
	return "bytea"
}

// Value implements driver.Valuer.
func (p Path) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return wkb.Marshal(p.LineString(), binary.LittleEndian)
}

// Scan implements sql.Scanner.
func (p *Path) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("path: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("path: %w", err)
	}
	switch t := g.(type) {
	case *geom.LineString:
		*p = pathFromCoords(t.Coords())
	case *geom.Point:
		// a one-vertex path cannot be a valid LINESTRING, so it is written as a POINT
		*p = pathFromCoords([]geom.Coord{t.Coords()})
	default:
		return fmt.Errorf("path: unexpected geometry %T", g)
	}
	return nil
}

// LineString converts the path to a go-geom geometry (x=lng, y=lat).
func (p Path) LineString() geom.T {
	coords := make([]geom.Coord, 0, len(p))
	for _, pt := range p {
		coords = append(coords, geom.Coord{pt.Lng, pt.Lat})
	}
	if len(coords) == 1 {
		return geom.NewPointFlat(geom.XY, coords[0])
	}
	return geom.NewLineString(geom.XY).MustSetCoords(coords)
}

// Equal reports whether both paths hold the same vertices in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

func pathFromCoords(coords []geom.Coord) Path {
	out := make(Path, 0, len(coords))
	for _, c := range coords {
		out = append(out, geo.Point{Lat: c.Y(), Lng: c.X()})
	}
	return out
}
