package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	fleet "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/fleet"
	"gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/middleware"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// DeviceController handles device management requests
type DeviceController struct {
	deviceService    *fleet.DeviceService
	heartbeatService *fleet.HeartbeatService
	logger           *logger.Logger
	authMiddleware   *middleware.AuthMiddleware
}

// NewDeviceController creates a new device controller
func NewDeviceController(deviceService *fleet.DeviceService, heartbeatService *fleet.HeartbeatService, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *DeviceController {
	return &DeviceController{
		deviceService:    deviceService,
		heartbeatService: heartbeatService,
		logger:           logger,
		authMiddleware:   authMiddleware,
	}
}

// RegisterRoutes registers the device routes with Gin
func (c *DeviceController) RegisterRoutes(router *gin.Engine) {
	devices := router.Group("/api/devices")
	devices.Use(c.authMiddleware.Authenticate())
	{
		devices.POST("", c.CreateDevice)
		devices.GET("", c.ListDevices)
		devices.GET("/stats", c.GetStats)
		devices.GET("/:device_id", c.GetDevice)
		devices.PATCH("/:device_id", c.UpdateDevice)
		devices.DELETE("/:device_id", c.DeleteDevice)
		devices.POST("/:device_id/heartbeat", c.Heartbeat)
	}
}

type CreateDeviceRequest struct {
	Name     string            `json:"name" binding:"required"`
	Type     string            `json:"type" binding:"required"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

func (c *DeviceController) CreateDevice(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := c.deviceService.Create(ctx, ownerID, fleet.CreateDeviceInput{
		Name:     req.Name,
		Type:     req.Type,
		Status:   req.Status,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, device)
}

func (c *DeviceController) ListDevices(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	result, err := c.deviceService.List(ctx, ownerID, interfaces.DeviceQueryParams{
		Type:   ctx.Query("type"),
		Status: ctx.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *DeviceController) GetStats(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	stats, err := c.deviceService.Stats(ctx, ownerID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

func (c *DeviceController) GetDevice(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	device, err := c.deviceService.Get(ctx, ownerID, ctx.Param("device_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, device)
}

type UpdateDeviceRequest struct {
	Name     *string           `json:"name,omitempty"`
	Type     *string           `json:"type,omitempty"`
	Status   *string           `json:"status,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c *DeviceController) UpdateDevice(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req UpdateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := c.deviceService.Update(ctx, ownerID, ctx.Param("device_id"), interfaces.DeviceUpdate{
		Name:     req.Name,
		Type:     req.Type,
		Status:   req.Status,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, device)
}

func (c *DeviceController) DeleteDevice(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := c.deviceService.Delete(ctx, ownerID, ctx.Param("device_id")); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": true})
}

type HeartbeatRequest struct {
	Status string `json:"status" binding:"required"`
}

func (c *DeviceController) Heartbeat(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req HeartbeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := c.heartbeatService.Heartbeat(ctx, ownerID, ctx.Param("device_id"), req.Status)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, device)
}
