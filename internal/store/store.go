// Package store persists BusService records and offers the conditional
// updates the tracker relies on to serialize writes per record.
package store

import (
	"context"
	"errors"
	"time"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists for driver")
	// ErrConflict means the record exists but the precondition of a
	// conditional write (expected status, active flag or version) did not hold.
	ErrConflict = errors.New("conditional update precondition failed")
)

// Store is the persistence contract for bus service records.
//
// Every method that changes routing or session state bumps Version, so a
// routing write conditioned on the version read earlier fails with
// ErrConflict if anything else touched the record in between. Position
// writes deliberately leave Version alone.
type Store interface {
	Create(ctx context.Context, rec *models.BusService) error
	Get(ctx context.Context, id uint) (models.BusService, error)
	GetByDriver(ctx context.Context, driverID string) (models.BusService, error)
	// List returns all records, or only those with the given status when
	// status is non-empty.
	List(ctx context.Context, status models.ServiceStatus) ([]models.BusService, error)
	// ListActive returns approved records whose service is running.
	ListActive(ctx context.Context) ([]models.BusService, error)
	Delete(ctx context.Context, id uint) error

	// TransitionStatus moves a record from status `from` to `to`.
	TransitionStatus(ctx context.Context, id uint, from, to models.ServiceStatus) (models.BusService, error)
	// StartSession activates an approved record and resets its session state.
	StartSession(ctx context.Context, driverID string, pos geo.Point, at time.Time) (models.BusService, error)
	// StopSession deactivates an active record.
	StopSession(ctx context.Context, driverID string) (models.BusService, error)
	// RecordPosition stores the raw position of an approved, active record.
	RecordPosition(ctx context.Context, driverID string, pos geo.Point, at time.Time) (models.BusService, error)
	// UpdateRouting replaces the routing state if Version still equals
	// expectedVersion.
	UpdateRouting(ctx context.Context, driverID string, expectedVersion int64, routing models.Routing) (models.BusService, error)
}
