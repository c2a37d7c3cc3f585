package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/controllers"
	fleet "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/fleet"
	container "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Container"
	implementation "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Implementation"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
	"gitlab.com/fleetsense/flt.device_server/src/production/FLT.SweeperService/sweeper"

	// Auth imports
	authService "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/auth"
	jwt "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/jwt"
	rbac "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/rbac"
	authMiddleware "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/middleware"
	api_models "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models/api"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting Fleet API Service")

	config := ctr.GetConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Select storage backends
	var (
		deviceRepo interfaces.DeviceRepository
		logRepo    interfaces.LogRepository
		userRepo   interfaces.UserRepository
	)

	switch config.Storage.Backend {
	case "memory":
		logger.Warn("Using in-memory storage backend; data will not survive restarts")
		deviceRepo = implementation.NewMemoryDeviceRepository()
		logRepo = implementation.NewMemoryLogRepository()
		userRepo = implementation.NewMemoryUserRepository()
	default:
		if err := ctr.InitializeDatabase(ctx); err != nil {
			logger.FatalWithError(err, "Failed to initialize database")
		}

		db, err := ctr.GetDatabase()
		if err != nil {
			logger.FatalWithError(err, "Failed to get database connection")
		}

		deviceRepo = implementation.NewPostgresDeviceRepository(db)
		userRepo = implementation.NewPostgresUserRepository(db)

		if config.Storage.LogBackend == "mongo" {
			client, err := ctr.GetMongoClient()
			if err != nil {
				logger.FatalWithError(err, "Failed to connect to MongoDB log store")
			}
			coll := client.Database(config.Mongo.Database).Collection(config.Mongo.Collection)
			logRepo = implementation.NewMongoLogRepository(coll)
			logger.Info("Using MongoDB log store")
		} else {
			logRepo = implementation.NewPostgresLogRepository(db)
		}
	}

	// Initialize JWT service for token validation
	jwtConfig := api_models.Config{
		SecretKey:            config.Auth.JWTSecretKey,
		AccessTokenDuration:  config.Auth.AccessTokenDuration,
		RefreshTokenDuration: config.Auth.RefreshTokenDuration,
		Issuer:               config.Auth.JWTIssuer,
	}
	jwtService := jwt.NewService(jwtConfig)

	// Initialize RBAC service
	rbacService := rbac.NewService()

	// Create auth middleware
	middlewareConfig := authMiddleware.Config{
		AccessTokenHeader: "Authorization",
		AccessTokenCookie: "access_token",
	}
	authMiddlewareInstance := authMiddleware.NewAuthMiddleware(jwtService, rbacService, middlewareConfig)

	// Initialize auth service and bootstrap the admin user
	authServiceInstance := authService.NewAuthService(userRepo, jwtService, rbacService)
	if _, err := authServiceInstance.Register(ctx, authService.RegisterRequest{
		Username: config.Auth.Admin.Username,
		Email:    config.Auth.Admin.Email,
		Password: config.Auth.Admin.Password,
		Role:     "admin",
	}); err != nil && err.Error() != "username already exists" {
		logger.FatalWithError(err, "Failed to initialize admin user")
	}

	// Initialize fleet services
	deviceService := fleet.NewDeviceService(deviceRepo, logRepo, logger)
	heartbeatService := fleet.NewHeartbeatService(deviceRepo)
	logService := fleet.NewLogService(deviceRepo, logRepo)
	usageService := fleet.NewUsageService(deviceRepo, logRepo)

	// Start the inactivity sweeper
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	var inactivitySweeper *sweeper.Sweeper
	if config.Sweeper.Enabled {
		inactivitySweeper = sweeper.New(deviceRepo, logger, sweeper.Config{
			Interval:  config.Sweeper.Interval,
			Threshold: config.Sweeper.Threshold,
		})
		inactivitySweeper.Start(sweeperCtx)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	authController := controllers.NewAuthController(authServiceInstance)
	deviceController := controllers.NewDeviceController(deviceService, heartbeatService, logger, authMiddlewareInstance)
	logController := controllers.NewLogController(logService, usageService, logger, authMiddlewareInstance)
	internalController := controllers.NewInternalController(deviceService, logService, heartbeatService)

	var healthCheck controllers.HealthCheckFunc
	if config.Storage.Backend != "memory" {
		healthCheck = ctr.HealthCheck
	}
	healthController := controllers.NewHealthController(healthCheck, logger)

	// Register all routes
	authController.RegisterRoutes(router, authMiddlewareInstance)
	deviceController.RegisterRoutes(router)
	logController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)
	internalController.RegisterRoutes(router)

	// Get port from configuration
	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("Fleet API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	if inactivitySweeper != nil {
		inactivitySweeper.Stop()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
