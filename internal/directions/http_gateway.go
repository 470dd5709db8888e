package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"bus_tracker/internal/geo"
)

const directionsPath = "/maps/api/directions/json"

// HTTPGateway talks to a Google-Directions-compatible JSON endpoint.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway builds a gateway against baseURL (scheme and host, no path).
// The http.Client timeout is a backstop; callers still pass a deadline.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// ComputeRoute requests driving directions and decodes the overview polyline.
func (g *HTTPGateway) ComputeRoute(ctx context.Context, origin, destination Place, via *Place) (Route, error) {
	if origin.IsZero() || destination.IsZero() {
		return Route{}, fmt.Errorf("%w: origin and destination are required", ErrProvider)
	}

	q := url.Values{}
	q.Set("origin", origin.String())
	q.Set("destination", destination.String())
	q.Set("mode", "driving")
	if via != nil && !via.IsZero() {
		q.Set("waypoints", "via:"+via.String())
	}
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+directionsPath+"?"+q.Encode(), nil)
	if err != nil {
		return Route{}, err
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("%w: unexpected HTTP status %d", ErrProvider, resp.StatusCode)
	}

	var body directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Route{}, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	logrus.WithFields(logrus.Fields{
		"origin":      origin.String(),
		"destination": destination.String(),
		"status":      body.Status,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}).Debug("Directions provider answered.")

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return Route{}, ErrNoRoute
	default:
		return Route{}, fmt.Errorf("%w: status %s %s", ErrProvider, body.Status, body.ErrorMessage)
	}
	if len(body.Routes) == 0 {
		return Route{}, ErrNoRoute
	}

	best := body.Routes[0]
	coords, _, err := polyline.DecodeCoords([]byte(best.OverviewPolyline.Points))
	if err != nil {
		return Route{}, fmt.Errorf("%w: decode polyline: %v", ErrProvider, err)
	}
	if len(coords) == 0 {
		return Route{}, ErrNoRoute
	}

	route := Route{Waypoints: make([]geo.Point, 0, len(coords))}
	for _, c := range coords {
		route.Waypoints = append(route.Waypoints, geo.Point{Lat: c[0], Lng: c[1]})
	}
	for _, leg := range best.Legs {
		route.DurationSeconds += leg.Duration.Value
	}
	return route, nil
}
