package models

import (
	"time"
)

// ServiceStatus is the admin decision on a bus application.
type ServiceStatus string

const (
	StatusPending  ServiceStatus = "pending"
	StatusApproved ServiceStatus = "approved"
	StatusRejected ServiceStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Stage is the sub-state of an active service session.
type Stage string

const (
	// StagePickup: the bus is heading to the start of its route.
	StagePickup Stage = "pickup"
	// StageRoute: the bus is running the approved route.
	StageRoute Stage = "route"
)

// DefaultRouteColor is used when an application does not pick one.
const DefaultRouteColor = "#1E88E5"

// BusService is one driver's bus-service application together with its live
// tracking state. There is at most one per driver.
type BusService struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DriverID      string  `gorm:"uniqueIndex;not null" json:"driver_id"`
	BusNumber     string  `gorm:"not null" json:"bus_number"`
	PlateID       string  `gorm:"not null" json:"plate_id"`
	RouteStart    string  `gorm:"not null" json:"route_start"`
	RouteEnd      string  `gorm:"not null" json:"route_end"`
	DriverLicense string  `json:"driver_license"`
	Fee           float64 `json:"fee"`
	RouteColor    string  `json:"route_color"`

	// Geometry of the approved route, stored as WKB.
	RouteWaypoints       Path    `json:"route_waypoints"`
	RouteDurationSeconds float64 `json:"route_duration_seconds"`

	Status ServiceStatus `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`

	IsActive           bool       `gorm:"index;not null;default:false" json:"is_active"`
	Stage              Stage      `gorm:"type:varchar(16);not null;default:pickup" json:"stage"`
	ArrivedAtStart     bool       `gorm:"not null;default:false" json:"arrived_at_start"`
	Lat                float64    `json:"lat"`
	Lng                float64    `json:"lng"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty"`
	DisplayRoute       Path       `json:"display_route"`
	PickupRoute        Path       `json:"pickup_route"`

	// Version is bumped on every routing-state write and used for
	// compare-and-set updates.
	Version int64 `gorm:"not null;default:0" json:"version"`
}

// TableName pins the table name.
func (BusService) TableName() string {
	return "bus_services"
}

// Clone returns a deep copy so callers never share path slices.
func (b BusService) Clone() BusService {
	out := b
	out.RouteWaypoints = b.RouteWaypoints.Clone()
	out.DisplayRoute = b.DisplayRoute.Clone()
	out.PickupRoute = b.PickupRoute.Clone()
	if b.LastLocationUpdate != nil {
		ts := *b.LastLocationUpdate
		out.LastLocationUpdate = &ts
	}
	return out
}

// Routing is the slice of state the ping processor owns.
type Routing struct {
	Stage                Stage
	ArrivedAtStart       bool
	RouteWaypoints       Path
	RouteDurationSeconds float64
	DisplayRoute         Path
	PickupRoute          Path
}

// Routing extracts the routing state.
func (b BusService) Routing() Routing {
	return Routing{
		Stage:                b.Stage,
		ArrivedAtStart:       b.ArrivedAtStart,
		RouteWaypoints:       b.RouteWaypoints.Clone(),
		RouteDurationSeconds: b.RouteDurationSeconds,
		DisplayRoute:         b.DisplayRoute.Clone(),
		PickupRoute:          b.PickupRoute.Clone(),
	}
}

// ApplyRouting writes r back onto the record.
func (b *BusService) ApplyRouting(r Routing) {
	b.Stage = r.Stage
	b.ArrivedAtStart = r.ArrivedAtStart
	b.RouteWaypoints = r.RouteWaypoints
	b.RouteDurationSeconds = r.RouteDurationSeconds
	b.DisplayRoute = r.DisplayRoute
	b.PickupRoute = r.PickupRoute
}

// Equal compares two routing states.
func (r Routing) Equal(other Routing) bool {
	return r.Stage == other.Stage &&
		r.ArrivedAtStart == other.ArrivedAtStart &&
		r.RouteDurationSeconds == other.RouteDurationSeconds &&
		r.RouteWaypoints.Equal(other.RouteWaypoints) &&
		r.DisplayRoute.Equal(other.DisplayRoute) &&
		r.PickupRoute.Equal(other.PickupRoute)
}
