package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

const uniqueViolation = "23505"

// GormStore keeps records in Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, rec *models.BusService) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id uint) (models.BusService, error) {
	var rec models.BusService
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return models.BusService{}, translate(err)
	}
	return rec, nil
}

func (s *GormStore) GetByDriver(ctx context.Context, driverID string) (models.BusService, error) {
	var rec models.BusService
	if err := s.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&rec).Error; err != nil {
		return models.BusService{}, translate(err)
	}
	return rec, nil
}

func (s *GormStore) List(ctx context.Context, status models.ServiceStatus) ([]models.BusService, error) {
	var recs []models.BusService
	q := s.db.WithContext(ctx).Order("id")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]models.BusService, error) {
	var recs []models.BusService
	err := s.db.WithContext(ctx).
		Where("status = ? AND is_active = ?", models.StatusApproved, true).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.BusService{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) TransitionStatus(ctx context.Context, id uint, from, to models.ServiceStatus) (models.BusService, error) {
	return s.conditionalUpdate(ctx,
		func(q *gorm.DB) *gorm.DB { return q.Where("id = ? AND status = ?", id, from) },
		func() (models.BusService, error) { return s.Get(ctx, id) },
		map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
}

func (s *GormStore) StartSession(ctx context.Context, driverID string, pos geo.Point, at time.Time) (models.BusService, error) {
	return s.conditionalUpdate(ctx,
		func(q *gorm.DB) *gorm.DB {
			return q.Where("driver_id = ? AND status = ?", driverID, models.StatusApproved)
		},
		func() (models.BusService, error) { return s.GetByDriver(ctx, driverID) },
		map[string]interface{}{
			"is_active":            true,
			"stage":                models.StagePickup,
			"arrived_at_start":     false,
			"display_route":        models.Path(nil),
			"lat":                  pos.Lat,
			"lng":                  pos.Lng,
			"last_location_update": at,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           at,
		})
}

func (s *GormStore) StopSession(ctx context.Context, driverID string) (models.BusService, error) {
	return s.conditionalUpdate(ctx,
		func(q *gorm.DB) *gorm.DB {
			return q.Where("driver_id = ? AND is_active = ?", driverID, true)
		},
		func() (models.BusService, error) { return s.GetByDriver(ctx, driverID) },
		map[string]interface{}{
			"is_active":  false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
}

func (s *GormStore) RecordPosition(ctx context.Context, driverID string, pos geo.Point, at time.Time) (models.BusService, error) {
	return s.conditionalUpdate(ctx,
		func(q *gorm.DB) *gorm.DB {
			return q.Where("driver_id = ? AND status = ? AND is_active = ?", driverID, models.StatusApproved, true)
		},
		func() (models.BusService, error) { return s.GetByDriver(ctx, driverID) },
		map[string]interface{}{
			"lat":                  pos.Lat,
			"lng":                  pos.Lng,
			"last_location_update": at,
			"updated_at":           at,
		})
}

func (s *GormStore) UpdateRouting(ctx context.Context, driverID string, expectedVersion int64, r models.Routing) (models.BusService, error) {
	return s.conditionalUpdate(ctx,
		func(q *gorm.DB) *gorm.DB {
			return q.Where("driver_id = ? AND version = ?", driverID, expectedVersion)
		},
		func() (models.BusService, error) { return s.GetByDriver(ctx, driverID) },
		map[string]interface{}{
			"stage":                  r.Stage,
			"arrived_at_start":       r.ArrivedAtStart,
			"route_waypoints":        r.RouteWaypoints,
			"route_duration_seconds": r.RouteDurationSeconds,
			"display_route":          r.DisplayRoute,
			"pickup_route":           r.PickupRoute,
			"version":                gorm.Expr("version + 1"),
			"updated_at":             time.Now().UTC(),
		})
}

// conditionalUpdate runs a single UPDATE ... WHERE <precondition> RETURNING *.
// When no row matched, lookup tells a missing record (ErrNotFound) apart from
// a failed precondition (ErrConflict).
func (s *GormStore) conditionalUpdate(
	ctx context.Context,
	where func(*gorm.DB) *gorm.DB,
	lookup func() (models.BusService, error),
	values map[string]interface{},
) (models.BusService, error) {
	var out []models.BusService
	res := where(s.db.WithContext(ctx).Model(&out).Clauses(clause.Returning{})).Updates(values)
	if res.Error != nil {
		return models.BusService{}, res.Error
	}
	if res.RowsAffected == 0 || len(out) == 0 {
		if _, err := lookup(); err != nil {
			return models.BusService{}, err
		}
		return models.BusService{}, ErrConflict
	}
	return out[0], nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
