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

// LogController handles telemetry log and usage requests
type LogController struct {
	logService     *fleet.LogService
	usageService   *fleet.UsageService
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewLogController creates a new log controller
func NewLogController(logService *fleet.LogService, usageService *fleet.UsageService, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *LogController {
	return &LogController{
		logService:     logService,
		usageService:   usageService,
		logger:         logger,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the log and usage routes with Gin
func (c *LogController) RegisterRoutes(router *gin.Engine) {
	devices := router.Group("/api/devices/:device_id")
	devices.Use(c.authMiddleware.Authenticate())
	{
		devices.POST("/logs", c.CreateLog)
		devices.GET("/logs", c.ListLogs)
		devices.GET("/usage", c.GetUsage)
	}
}

type CreateLogRequest struct {
	Event    string            `json:"event" binding:"required"`
	Value    interface{}       `json:"value"`
	Metadata map[string]string `json:"metadata"`
}

func (c *LogController) CreateLog(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateLogRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := c.logService.Ingest(ctx, ownerID, ctx.Param("device_id"), req.Event, req.Value, req.Metadata)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, entry)
}

func (c *LogController) ListLogs(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	result, err := c.logService.Query(ctx, ownerID, ctx.Param("device_id"), interfaces.LogQueryParams{
		Event: ctx.Query("event"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *LogController) GetUsage(ctx *gin.Context) {
	ownerID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	report, err := c.usageService.Usage(ctx, ownerID, ctx.Param("device_id"), ctx.Query("range"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, report)
}
