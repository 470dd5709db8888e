package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at start-up.
type Config struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	StoreDriver string `yaml:"store_driver" validate:"oneof=postgres memory"`
	JWTSecret   string `yaml:"jwt_secret" validate:"required"`

	Database   DatabaseConfig   `yaml:"database"`
	Directions DirectionsConfig `yaml:"directions"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

type DirectionsConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// TrackerConfig holds the geofence thresholds in meters.
type TrackerConfig struct {
	ArrivalRadiusM     float64 `yaml:"arrival_radius_m" validate:"gt=0"`
	FarThresholdM      float64 `yaml:"far_threshold_m" validate:"gtfield=ArrivalRadiusM"`
	OffRouteThresholdM float64 `yaml:"offroute_threshold_m" validate:"gt=0"`
	PingMaxAttempts    int     `yaml:"ping_max_attempts" validate:"gte=1,lte=5"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	FleetTTL time.Duration `yaml:"fleet_ttl" validate:"gte=0"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
}

// Defaults mirrors the values the service ships with.
func Defaults() Config {
	return Config{
		Port:        "8080",
		StoreDriver: "postgres",
		JWTSecret:   "supersecret",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "password",
			Name:     "tracker",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
		Directions: DirectionsConfig{
			BaseURL: "https://maps.googleapis.com",
			Timeout: 8 * time.Second,
		},
		Tracker: TrackerConfig{
			ArrivalRadiusM:     100,
			FarThresholdM:      200,
			OffRouteThresholdM: 150,
			PingMaxAttempts:    2,
		},
		Redis: RedisConfig{
			FleetTTL: 2 * time.Second,
		},
		NATS: NATSConfig{
			SubjectPrefix: "bus",
		},
		Log: LogConfig{
			File:  "./logs/app.log",
			Level: "debug",
		},
	}
}

// Load reads .env (if present), overlays the YAML file named by
// TRACKER_CONFIG (if set), then applies environment variables, and validates
// the result.
func Load() (*Config, error) {
	// .env is optional; plain env vars work too
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("TRACKER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	e := &envReader{}
	e.str("PORT", &cfg.Port)
	e.str("STORE_DRIVER", &cfg.StoreDriver)
	e.str("JWT_SECRET", &cfg.JWTSecret)

	e.str("DB_HOST", &cfg.Database.Host)
	e.str("DB_PORT", &cfg.Database.Port)
	e.str("DB_USER", &cfg.Database.User)
	e.str("DB_PASSWORD", &cfg.Database.Password)
	e.str("DB_NAME", &cfg.Database.Name)
	e.str("DB_SSLMODE", &cfg.Database.SSLMode)
	e.str("DB_TIMEZONE", &cfg.Database.TimeZone)

	e.str("DIRECTIONS_BASE_URL", &cfg.Directions.BaseURL)
	e.str("DIRECTIONS_API_KEY", &cfg.Directions.APIKey)
	e.duration("GATEWAY_TIMEOUT", &cfg.Directions.Timeout)

	e.decimal("ARRIVAL_RADIUS_M", &cfg.Tracker.ArrivalRadiusM)
	e.decimal("FAR_THRESHOLD_M", &cfg.Tracker.FarThresholdM)
	e.decimal("OFFROUTE_THRESHOLD_M", &cfg.Tracker.OffRouteThresholdM)
	e.integer("PING_MAX_ATTEMPTS", &cfg.Tracker.PingMaxAttempts)

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.integer("REDIS_DB", &cfg.Redis.DB)
	e.duration("FLEET_CACHE_TTL", &cfg.Redis.FleetTTL)

	e.str("NATS_URL", &cfg.NATS.URL)
	e.str("NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix)

	e.str("LOG_FILE", &cfg.Log.File)
	e.str("LOG_LEVEL", &cfg.Log.Level)

	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.StoreDriver == "postgres" && c.Database.Host == "" {
		return fmt.Errorf("invalid configuration: DB_HOST is required for the postgres store")
	}
	return nil
}

// DSN builds the Postgres data source name.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

// envReader applies set environment variables and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func (e *envReader) decimal(key string, dst *float64) {
	v, ok := os.LookupEnv(key)
	if !ok || e.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = f
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = d
}
