package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"bus_tracker/internal/tracker"
)

// FleetController serves the public fleet view.
type FleetController struct {
	svc *tracker.Service
}

func NewFleetController(svc *tracker.Service) *FleetController {
	return &FleetController{svc: svc}
}

// ActiveFleet lists every running bus. ?format=geojson returns a
// FeatureCollection with a Point per bus and a LineString per display route.
func (fc *FleetController) ActiveFleet(c *gin.Context) {
	fleet, err := fc.svc.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, gin.H{"data": fleet})
	case "geojson":
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, fleetFeatures(fleet))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or geojson"})
	}
}

func fleetFeatures(fleet []tracker.FleetBus) *geojson.FeatureCollection {
	collection := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, 2*len(fleet))}
	for _, bus := range fleet {
		props := map[string]interface{}{
			"driver_id":      bus.DriverID,
			"bus_number":     bus.BusNumber,
			"plate_id":       bus.PlateID,
			"stage":          bus.Stage,
			"route_color":    bus.RouteColor,
			"fee":            bus.Fee,
			"route_start":    bus.RouteStart,
			"route_end":      bus.RouteEnd,
			"route_length_m": bus.RouteLengthM,
		}
		if bus.LastLocationUpdate != nil {
			props["last_location_update"] = bus.LastLocationUpdate
		}

		collection.Features = append(collection.Features, &geojson.Feature{
			ID:         fmt.Sprintf("bus-%d", bus.ID),
			Geometry:   geom.NewPointFlat(geom.XY, []float64{bus.Lng, bus.Lat}),
			Properties: props,
		})
		if len(bus.DisplayRoute) > 1 {
			collection.Features = append(collection.Features, &geojson.Feature{
				ID:       fmt.Sprintf("route-%d", bus.ID),
				Geometry: bus.DisplayRoute.LineString(),
				Properties: map[string]interface{}{
					"driver_id":   bus.DriverID,
					"route_color": bus.RouteColor,
					"stage":       bus.Stage,
				},
			})
		}
	}
	return collection
}

// Healthz is a liveness probe.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
