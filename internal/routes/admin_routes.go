package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

func AdminRoutes(r *gin.Engine, ctrl *controllers.BusServiceController, secret []byte) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole(secret, middleware.RoleAdmin))
	{
		admin.GET("/applications", ctrl.ListApplications)
		admin.GET("/applications/:id", ctrl.GetApplication)
		admin.POST("/applications/:id/approve", ctrl.ApproveApplication)
		admin.POST("/applications/:id/reject", ctrl.RejectApplication)
		admin.POST("/applications/:id/recompute-route", ctrl.RecomputeRoute)
		admin.DELETE("/applications/:id", ctrl.RemoveApplication)
	}
}
