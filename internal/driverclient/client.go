// Package driverclient is the reference driver-side loop: start a service,
// ping the tracker periodically and stop when told to.
package driverclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/geo"
)

// ErrNotActive is returned when the tracker answers 404: the service is not
// running, so the client must stop pinging.
var ErrNotActive = errors.New("service not active")

// Source reports the device position.
type Source interface {
	Position(ctx context.Context) (geo.Point, error)
}

// MovementSource is a Source that also pushes positions while the device
// moves. Pushed positions are pinged subject to the same throttle.
type MovementSource interface {
	Source
	Moves() <-chan geo.Point
}

type Options struct {
	// Interval between periodic samples.
	Interval time.Duration
	// MinInterval is the least time between two pings, however they are
	// triggered.
	MinInterval time.Duration
	HTTPClient  *http.Client
}

func DefaultOptions() Options {
	return Options{
		Interval:    10 * time.Second,
		MinInterval: 10 * time.Second,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type Client struct {
	baseURL  string
	token    string
	driverID string
	opts     Options

	mu       sync.Mutex
	lastPing time.Time
}

func New(baseURL, token, driverID string, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = DefaultOptions().HTTPClient
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		driverID: driverID,
		opts:     opts,
	}
}

type positionBody struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

func (c *Client) Start(ctx context.Context, p geo.Point) error {
	return c.post(ctx, "/driver/service/start", positionBody{DriverID: c.driverID, Lat: p.Lat, Lng: p.Lng})
}

func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/driver/service/stop", map[string]string{"driver_id": c.driverID})
}

// Ping sends a position unless the previous ping was less than MinInterval
// ago. It reports whether a request was sent.
func (c *Client) Ping(ctx context.Context, p geo.Point) (bool, error) {
	c.mu.Lock()
	now := time.Now()
	if !c.lastPing.IsZero() && now.Sub(c.lastPing) < c.opts.MinInterval {
		c.mu.Unlock()
		return false, nil
	}
	c.lastPing = now
	c.mu.Unlock()

	err := c.post(ctx, "/driver/service/ping", positionBody{DriverID: c.driverID, Lat: p.Lat, Lng: p.Lng})
	return true, err
}

// Run starts the service at the current position and pings until ctx is
// cancelled or the tracker reports the service is no longer active. On
// cancellation it stops the service before returning.
func (c *Client) Run(ctx context.Context, src Source) error {
	log := logrus.WithField("driver_id", c.driverID)

	start, err := src.Position(ctx)
	if err != nil {
		return fmt.Errorf("initial position: %w", err)
	}
	if err := c.Start(ctx, start); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	log.Info("service started")

	var moves <-chan geo.Point
	if ms, ok := src.(MovementSource); ok {
		moves = ms.Moves()
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		var (
			p   geo.Point
			err error
		)
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Stop(stopCtx); err != nil && !errors.Is(err, ErrNotActive) {
				log.WithError(err).Warn("stop service failed")
			}
			log.Info("service stopped")
			return nil
		case moved, ok := <-moves:
			if !ok {
				moves = nil
				continue
			}
			p = moved
		case <-ticker.C:
			if p, err = src.Position(ctx); err != nil {
				log.WithError(err).Warn("position unavailable, skipping ping")
				continue
			}
		}

		sent, err := c.Ping(ctx, p)
		switch {
		case errors.Is(err, ErrNotActive):
			log.Info("tracker reports service inactive, stopping pings")
			return nil
		case err != nil:
			// transient; try again on the next tick
			log.WithError(err).Warn("ping failed")
		case sent:
			log.WithFields(logrus.Fields{"lat": p.Lat, "lng": p.Lng}).Debug("ping sent")
		}
	}
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotActive
	}
	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return fmt.Errorf("%s: %s: %s", path, resp.Status, payload.Error)
	}
	return nil
}
