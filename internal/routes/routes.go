package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/logger"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/tracker"
)

// Dependencies is everything the HTTP layer needs.
type Dependencies struct {
	Tracker   *tracker.Service
	Hub       *controllers.FleetHub
	Metrics   http.Handler
	JWTSecret []byte
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		ginlog.SetLogger(
			ginlog.WithWriter(logger.Writer()),
			ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
		),
		middleware.CORS(),
	)

	busServices := controllers.NewBusServiceController(deps.Tracker)

	DriverRoutes(r, busServices, deps.JWTSecret)
	AdminRoutes(r, busServices, deps.JWTSecret)
	CommuterRoutes(r, controllers.NewFleetController(deps.Tracker))
	WebSocketRoutes(r, deps.Hub)

	r.GET("/healthz", controllers.Healthz)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return r
}
