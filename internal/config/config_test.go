package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100.0, cfg.Tracker.ArrivalRadiusM)
	assert.Equal(t, 200.0, cfg.Tracker.FarThresholdM)
	assert.Equal(t, 150.0, cfg.Tracker.OffRouteThresholdM)
	assert.Equal(t, 8*time.Second, cfg.Directions.Timeout)
}

func TestLoadAppliesEnvironment(t *testing.T) {
	t.Setenv("TRACKER_CONFIG", "")
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ARRIVAL_RADIUS_M", "50")
	t.Setenv("FAR_THRESHOLD_M", "400")
	t.Setenv("PING_MAX_ATTEMPTS", "3")
	t.Setenv("GATEWAY_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 50.0, cfg.Tracker.ArrivalRadiusM)
	assert.Equal(t, 400.0, cfg.Tracker.FarThresholdM)
	assert.Equal(t, 3, cfg.Tracker.PingMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Directions.Timeout)
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("TRACKER_CONFIG", "")
	t.Setenv("ARRIVAL_RADIUS_M", "near")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARRIVAL_RADIUS_M")
}

func TestLoadReadsYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	body := []byte(`
store_driver: memory
tracker:
  arrival_radius_m: 80
  far_threshold_m: 300
  offroute_threshold_m: 120
  ping_max_attempts: 2
nats:
  subject_prefix: fleet
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("TRACKER_CONFIG", path)
	// env still wins over the file
	t.Setenv("OFFROUTE_THRESHOLD_M", "175")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 80.0, cfg.Tracker.ArrivalRadiusM)
	assert.Equal(t, 300.0, cfg.Tracker.FarThresholdM)
	assert.Equal(t, 175.0, cfg.Tracker.OffRouteThresholdM)
	assert.Equal(t, "fleet", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "./logs/app.log", cfg.Log.File, "unset keys keep their defaults")
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"far below arrival", func(c *Config) { c.Tracker.FarThresholdM = c.Tracker.ArrivalRadiusM / 2 }},
		{"zero arrival radius", func(c *Config) { c.Tracker.ArrivalRadiusM = 0 }},
		{"no attempts", func(c *Config) { c.Tracker.PingMaxAttempts = 0 }},
		{"unknown store", func(c *Config) { c.StoreDriver = "sqlite" }},
		{"postgres without host", func(c *Config) { c.Database.Host = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDSN(t *testing.T) {
	d := Defaults().Database
	assert.Equal(t,
		"host=localhost user=postgres password=password dbname=tracker port=5432 sslmode=disable TimeZone=UTC",
		d.DSN())
}
