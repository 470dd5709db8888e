package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
)

// CommuterRoutes exposes the public fleet view. No token is needed.
func CommuterRoutes(r *gin.Engine, ctrl *controllers.FleetController) {
	fleet := r.Group("/fleet")
	{
		fleet.GET("/active", ctrl.ActiveFleet)
	}
}
