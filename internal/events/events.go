// Package events fans bus state changes out to live consumers.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	ApplicationSubmitted Type = "application_submitted"
	ApplicationApproved  Type = "application_approved"
	ApplicationRejected  Type = "application_rejected"
	ApplicationRemoved   Type = "application_removed"
	RouteComputed        Type = "route_computed"
	ServiceStarted       Type = "service_started"
	ServiceStopped       Type = "service_stopped"
	PositionUpdated      Type = "position_updated"
	StageChanged         Type = "stage_changed"
)

// Event is a flat snapshot of a bus at the moment something happened to it.
type Event struct {
	Type       Type      `json:"type"`
	ID         uint      `json:"id"`
	DriverID   string    `json:"driver_id"`
	BusNumber  string    `json:"bus_number"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	IsActive   bool      `json:"is_active"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RouteColor string    `json:"route_color"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
