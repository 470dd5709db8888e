package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/cache"
	"bus_tracker/internal/config"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/directions"
	"bus_tracker/internal/events"
	"bus_tracker/internal/logger"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/routes"
	"bus_tracker/internal/store"
	"bus_tracker/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration error")
	}

	// Initialize structured logging to file
	logger.Setup(cfg.Log.File, cfg.Log.Level)

	collector := metrics.NewCollector()

	st, err := openStore(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("store unavailable")
	}

	hub := controllers.NewFleetHub(collector)
	publishers := events.Fanout{hub}
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, collector)
		if err != nil {
			logrus.WithError(err).Fatal("nats unavailable")
		}
		defer nc.Close()
		publishers = append(publishers, nc)
	}

	opts := []tracker.Option{
		tracker.WithPublisher(publishers),
		tracker.WithMetrics(collector),
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logrus.WithError(err).Warn("redis unreachable, fleet cache will miss until it recovers")
		}
		opts = append(opts, tracker.WithFleetCache(cache.NewRedisFleetCache(rdb, cfg.Redis.FleetTTL, collector)))
	}

	gateway := directions.NewHTTPGateway(cfg.Directions.BaseURL, cfg.Directions.APIKey, cfg.Directions.Timeout)
	svc := tracker.NewService(st, gateway, tracker.Config{
		ArrivalRadiusM:     cfg.Tracker.ArrivalRadiusM,
		FarThresholdM:      cfg.Tracker.FarThresholdM,
		OffRouteThresholdM: cfg.Tracker.OffRouteThresholdM,
		GatewayTimeout:     cfg.Directions.Timeout,
		MaxAttempts:        cfg.Tracker.PingMaxAttempts,
	}, opts...)

	r := routes.SetupRouter(routes.Dependencies{
		Tracker:   svc,
		Hub:       hub,
		Metrics:   collector.Handler(),
		JWTSecret: []byte(cfg.JWTSecret),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":  cfg.Port,
			"store": cfg.StoreDriver,
		}).Info("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
	hub.Close()
	if err := svc.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("background route jobs still running")
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		logrus.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}
