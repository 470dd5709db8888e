package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
	"bus_tracker/internal/tracker"
)

// --- Request bodies ---

// applicationInput is what a driver sends to apply for a bus service.
// driver_id may be omitted; it defaults to the token subject.
type applicationInput struct {
	DriverID      string  `json:"driver_id"`
	BusNumber     string  `json:"bus_number" binding:"required"`
	PlateID       string  `json:"plate_id" binding:"required"`
	RouteStart    string  `json:"route_start" binding:"required"`
	RouteEnd      string  `json:"route_end" binding:"required"`
	DriverLicense string  `json:"driver_license"`
	Fee           float64 `json:"fee" binding:"gte=0"`
	RouteColor    string  `json:"route_color" binding:"omitempty,hexcolor"`
}

// positionInput carries a driver's position for start and ping.
type positionInput struct {
	DriverID string   `json:"driver_id"`
	Lat      *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lng      *float64 `json:"lng" binding:"required,gte=-180,lte=180"`
}

type stopInput struct {
	DriverID string `json:"driver_id"`
}

// BusServiceController serves the driver and admin endpoints.
type BusServiceController struct {
	svc *tracker.Service
}

func NewBusServiceController(svc *tracker.Service) *BusServiceController {
	return &BusServiceController{svc: svc}
}

// --- Driver endpoints ---

// SubmitApplication creates a pending application for the authenticated driver.
func (bc *BusServiceController) SubmitApplication(c *gin.Context) {
	var input applicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body format: " + err.Error()})
		return
	}
	driverID, ok := ownDriverID(c, input.DriverID)
	if !ok {
		return
	}

	rec, err := bc.svc.Submit(c.Request.Context(), tracker.Application{
		DriverID:      driverID,
		BusNumber:     input.BusNumber,
		PlateID:       input.PlateID,
		RouteStart:    input.RouteStart,
		RouteEnd:      input.RouteEnd,
		DriverLicense: input.DriverLicense,
		Fee:           input.Fee,
		RouteColor:    input.RouteColor,
	})
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Application submitted and awaiting approval.",
		"data":    rec,
	})
}

// MyApplication returns the authenticated driver's application.
func (bc *BusServiceController) MyApplication(c *gin.Context) {
	rec, err := bc.svc.GetByDriver(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

// StartService begins the driver's tracking session.
func (bc *BusServiceController) StartService(c *gin.Context) {
	var input positionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body format: " + err.Error()})
		return
	}
	driverID, ok := ownDriverID(c, input.DriverID)
	if !ok {
		return
	}

	rec, err := bc.svc.StartService(c.Request.Context(), driverID, *input.Lat, *input.Lng)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Service started.",
		"data":    rec,
	})
}

// Ping records the driver's position and advances the stage machine.
// A 404 tells the client to stop pinging.
func (bc *BusServiceController) Ping(c *gin.Context) {
	var input positionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body format: " + err.Error()})
		return
	}
	driverID, ok := ownDriverID(c, input.DriverID)
	if !ok {
		return
	}

	rec, err := bc.svc.ProcessPing(c.Request.Context(), driverID, *input.Lat, *input.Lng)
	if err != nil {
		respondError(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

// StopService ends the driver's tracking session.
func (bc *BusServiceController) StopService(c *gin.Context) {
	var input stopInput
	// the body is optional here
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body format: " + err.Error()})
			return
		}
	}
	driverID, ok := ownDriverID(c, input.DriverID)
	if !ok {
		return
	}

	rec, err := bc.svc.StopService(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Service stopped.",
		"data":    rec,
	})
}

// --- Admin endpoints ---

// ListApplications lists applications, optionally filtered by ?status=.
func (bc *BusServiceController) ListApplications(c *gin.Context) {
	recs, err := bc.svc.List(c.Request.Context(), models.ServiceStatus(c.Query("status")))
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs})
}

// GetApplication fetches one application by id.
func (bc *BusServiceController) GetApplication(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := bc.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

// ApproveApplication approves a pending application.
func (bc *BusServiceController) ApproveApplication(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := bc.svc.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Application approved.",
		"data":    rec,
	})
}

// RejectApplication rejects a pending application.
func (bc *BusServiceController) RejectApplication(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := bc.svc.Reject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Application rejected.",
		"data":    rec,
	})
}

// RecomputeRoute asks the directions provider for a fresh main route.
func (bc *BusServiceController) RecomputeRoute(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := bc.svc.RecomputeRoute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Route recomputed.",
		"data":    rec,
	})
}

// RemoveApplication deletes an application.
func (bc *BusServiceController) RemoveApplication(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := bc.svc.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application removed."})
}

// --- helpers ---

// ownDriverID resolves the driver a request acts for. Drivers may only act
// for themselves.
func ownDriverID(c *gin.Context, requested string) (string, bool) {
	subject := middleware.Subject(c)
	if requested == "" {
		return subject, true
	}
	if requested != subject {
		logrus.WithFields(logrus.Fields{
			"subject":   subject,
			"driver_id": requested,
		}).Warn("Driver attempted to act for a different driver ID. Denying.")
		c.JSON(http.StatusForbidden, gin.H{"error": "You may only act for your own driver ID."})
		return "", false
	}
	return requested, true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID format."})
		return 0, false
	}
	return uint(id), true
}

// respondError maps tracker errors to HTTP statuses. notActiveStatus is used
// for ErrNotActive, which means "stop pinging" (404) on the ping endpoint and
// a conflict elsewhere.
func respondError(c *gin.Context, err error, notActiveStatus int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tracker.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tracker.ErrNotActive):
		status = notActiveStatus
	case errors.Is(err, tracker.ErrDuplicateApplication),
		errors.Is(err, tracker.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, tracker.ErrNotApproved):
		status = http.StatusForbidden
	case errors.Is(err, tracker.ErrInvalidPosition),
		errors.Is(err, tracker.ErrInvalidApplication):
		status = http.StatusBadRequest
	case errors.Is(err, tracker.ErrRouteComputationFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed.")
		c.JSON(status, gin.H{"error": "Internal server error."})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
