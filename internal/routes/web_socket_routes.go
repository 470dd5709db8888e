package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine, hub *controllers.FleetHub) {
	if hub == nil {
		return
	}
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/fleet", hub.HandleFleetWebSocket)
	}
}
