package config

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bus_tracker/internal/logger"
	"bus_tracker/internal/models"
)

// InitDB opens the Postgres connection described by cfg and migrates the
// bus_services table.
func InitDB(cfg DatabaseConfig) (*gorm.DB, error) {
	// TranslateError maps unique violations to gorm.ErrDuplicatedKey
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.GormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.BusService{}); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}
