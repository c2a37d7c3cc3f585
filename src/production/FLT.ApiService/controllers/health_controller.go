package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
)

// HealthCheckFunc reports component health for the readiness endpoint
type HealthCheckFunc func(ctx context.Context) map[string]interface{}

// HealthController handles health requests
type HealthController struct {
	healthCheck HealthCheckFunc
	logger      *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(healthCheck HealthCheckFunc, logger *logger.Logger) *HealthController {
	return &HealthController{
		healthCheck: healthCheck,
		logger:      logger,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	router.GET("/metrics", c.Metrics)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	if c.healthCheck == nil {
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	status := c.healthCheck(ctx)
	code := http.StatusOK
	if status["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}

func (c *HealthController) Metrics(ctx *gin.Context) {
	// Basic metrics endpoint - can be enhanced with Prometheus metrics
	ctx.String(http.StatusOK, "# HELP fleet_api_health Health status of fleet API service\n# TYPE fleet_api_health gauge\nfleet_api_health 1\n")
}
