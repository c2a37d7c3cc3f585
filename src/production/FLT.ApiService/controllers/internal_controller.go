package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	fleet "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/fleet"
	"gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/middleware"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// InternalController handles internal API endpoints for service-to-service communication
type InternalController struct {
	deviceService    *fleet.DeviceService
	logService       *fleet.LogService
	heartbeatService *fleet.HeartbeatService
}

// NewInternalController creates a new internal controller
func NewInternalController(deviceService *fleet.DeviceService, logService *fleet.LogService, heartbeatService *fleet.HeartbeatService) *InternalController {
	return &InternalController{
		deviceService:    deviceService,
		logService:       logService,
		heartbeatService: heartbeatService,
	}
}

// ValidateDeviceRequest represents the request to validate a device
type ValidateDeviceRequest struct {
	OwnerID  string `json:"owner_id" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// ValidateDeviceResponse represents the response from device validation
type ValidateDeviceResponse struct {
	Exists bool   `json:"exists"`
	Error  string `json:"error,omitempty"`
}

// CreateLogEntryRequest represents the request to append a telemetry log
type CreateLogEntryRequest struct {
	OwnerID  string            `json:"owner_id" binding:"required"`
	DeviceID string            `json:"device_id" binding:"required"`
	Event    string            `json:"event" binding:"required"`
	Value    interface{}       `json:"value"`
	Metadata map[string]string `json:"metadata"`
}

// CreateLogEntryResponse represents the response from log creation
type CreateLogEntryResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HeartbeatRequestInternal represents a device heartbeat relayed by the ingestor
type HeartbeatRequestInternal struct {
	OwnerID  string `json:"owner_id" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
	Status   string `json:"status" binding:"required"`
}

// HeartbeatResponseInternal represents the response from a relayed heartbeat
type HeartbeatResponseInternal struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ValidateDevice checks if a device exists for a given owner
func (c *InternalController) ValidateDevice(ctx *gin.Context) {
	var req ValidateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ValidateDeviceResponse{
			Exists: false,
			Error:  "Invalid request: " + err.Error(),
		})
		return
	}

	_, err := c.deviceService.Get(ctx, req.OwnerID, req.DeviceID)
	if err != nil {
		ctx.JSON(http.StatusOK, ValidateDeviceResponse{
			Exists: false,
			Error:  "",
		})
		return
	}

	ctx.JSON(http.StatusOK, ValidateDeviceResponse{
		Exists: true,
		Error:  "",
	})
}

// CreateLogEntry appends a telemetry log on behalf of the ingestor
func (c *InternalController) CreateLogEntry(ctx *gin.Context) {
	var req CreateLogEntryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, CreateLogEntryResponse{
			Success: false,
			Error:   "Invalid request: " + err.Error(),
		})
		return
	}

	_, err := c.logService.Ingest(ctx, req.OwnerID, req.DeviceID, req.Event, req.Value, req.Metadata)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interfaces.ErrNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, interfaces.ErrValidation) {
			status = http.StatusBadRequest
		}
		ctx.JSON(status, CreateLogEntryResponse{
			Success: false,
			Error:   "Failed to create log entry: " + err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, CreateLogEntryResponse{
		Success: true,
		Error:   "",
	})
}

// RecordHeartbeat records a device heartbeat on behalf of the ingestor
func (c *InternalController) RecordHeartbeat(ctx *gin.Context) {
	var req HeartbeatRequestInternal
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, HeartbeatResponseInternal{
			Success: false,
			Error:   "Invalid request: " + err.Error(),
		})
		return
	}

	_, err := c.heartbeatService.Heartbeat(ctx, req.OwnerID, req.DeviceID, req.Status)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interfaces.ErrNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, interfaces.ErrValidation) {
			status = http.StatusBadRequest
		}
		ctx.JSON(status, HeartbeatResponseInternal{
			Success: false,
			Error:   "Failed to record heartbeat: " + err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, HeartbeatResponseInternal{
		Success: true,
		Error:   "",
	})
}

// RegisterRoutes registers the internal API routes
func (c *InternalController) RegisterRoutes(router *gin.Engine) {
	// Internal API group with service-to-service authentication
	internal := router.Group("/internal")
	internal.Use(middleware.ServiceAuthMiddleware())

	// Device validation endpoint
	internal.POST("/devices/validate", c.ValidateDevice)

	// Log creation endpoint
	internal.POST("/logs", c.CreateLogEntry)

	// Heartbeat endpoint
	internal.POST("/heartbeats", c.RecordHeartbeat)
}
