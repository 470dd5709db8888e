package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

func DriverRoutes(r *gin.Engine, ctrl *controllers.BusServiceController, secret []byte) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireAuthWithRole(secret, middleware.RoleDriver))
	{
		driver.POST("/applications", ctrl.SubmitApplication)
		driver.GET("/applications/me", ctrl.MyApplication)

		driver.POST("/service/start", ctrl.StartService)
		driver.POST("/service/ping", ctrl.Ping)
		driver.POST("/service/stop", ctrl.StopService)
	}
}
