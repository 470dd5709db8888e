// Command driversim drives one simulated bus against a running tracker.
// It starts a service, then walks a straight line between two points,
// pinging as it goes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/driverclient"
	"bus_tracker/internal/geo"
)

// lineSource moves a fixed fraction of the way from a to b on every read and
// then parks at b.
type lineSource struct {
	mu    sync.Mutex
	a, b  geo.Point
	step  int
	steps int
}

func (s *lineSource) Position(context.Context) (geo.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := float64(s.step) / float64(s.steps)
	if s.step < s.steps {
		s.step++
	}
	return geo.Point{
		Lat: s.a.Lat + (s.b.Lat-s.a.Lat)*f,
		Lng: s.a.Lng + (s.b.Lng-s.a.Lng)*f,
	}, nil
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "tracker base URL")
		token    = flag.String("token", os.Getenv("DRIVER_TOKEN"), "driver bearer token")
		driverID = flag.String("driver", "", "driver ID (must match the token subject)")
		fromLat  = flag.Float64("from-lat", -1.2864, "start latitude")
		fromLng  = flag.Float64("from-lng", 36.8172, "start longitude")
		toLat    = flag.Float64("to-lat", -1.2676, "end latitude")
		toLng    = flag.Float64("to-lng", 36.8108, "end longitude")
		steps    = flag.Int("steps", 60, "pings needed to reach the end point")
		interval = flag.Duration("interval", 10*time.Second, "ping interval")
		verbose  = flag.Bool("v", false, "log every ping")
	)
	flag.Parse()

	if *token == "" || *driverID == "" || *steps <= 0 {
		fmt.Fprintln(os.Stderr, "usage: driversim --driver=<id> --token=<jwt> [--url=...] [--steps=60] [--interval=10s]")
		os.Exit(2)
	}
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	src := &lineSource{
		a:     geo.Point{Lat: *fromLat, Lng: *fromLng},
		b:     geo.Point{Lat: *toLat, Lng: *toLng},
		steps: *steps,
	}
	if err := src.a.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid start point")
	}
	if err := src.b.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid end point")
	}
	logrus.WithFields(logrus.Fields{
		"driver_id": *driverID,
		"meters":    int(geo.Distance(src.a, src.b)),
		"steps":     *steps,
	}).Info("simulating trip")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := driverclient.DefaultOptions()
	opts.Interval = *interval
	opts.MinInterval = *interval / 2

	client := driverclient.New(*baseURL, *token, *driverID, opts)
	if err := client.Run(ctx, src); err != nil {
		logrus.WithError(err).Fatal("driver loop failed")
	}
}
