package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fleet "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/fleet"
	jwt "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/jwt"
	rbac "gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/implementation/rbac"
	"gitlab.com/fleetsense/flt.device_server/src/production/FLT.ApiService/middleware"
	config "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Config"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
	api_models "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models/api"
	implementation "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Implementation"
)

type apiFixture struct {
	router     *gin.Engine
	jwtService *jwt.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})

	deviceRepo := implementation.NewMemoryDeviceRepository()
	logRepo := implementation.NewMemoryLogRepository()

	jwtService := jwt.NewService(api_models.Config{
		SecretKey:            "test-secret",
		AccessTokenDuration:  time.Hour,
		RefreshTokenDuration: 24 * time.Hour,
		Issuer:               "test",
	})
	rbacService := rbac.NewService()
	authMw := middleware.NewAuthMiddleware(jwtService, rbacService, middleware.DefaultConfig())

	deviceService := fleet.NewDeviceService(deviceRepo, logRepo, log)
	heartbeatService := fleet.NewHeartbeatService(deviceRepo)
	logService := fleet.NewLogService(deviceRepo, logRepo)
	usageService := fleet.NewUsageService(deviceRepo, logRepo)

	router := gin.New()
	NewDeviceController(deviceService, heartbeatService, log, authMw).RegisterRoutes(router)
	NewLogController(logService, usageService, log, authMw).RegisterRoutes(router)
	NewInternalController(deviceService, logService, heartbeatService).RegisterRoutes(router)
	NewHealthController(nil, log).RegisterRoutes(router)

	return &apiFixture{router: router, jwtService: jwtService}
}

func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	pair, err := f.jwtService.GenerateTokens(userID, "user")
	require.NoError(t, err)
	return pair.AccessToken
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createDevice(t *testing.T, token string) string {
	t.Helper()
	rec := f.request(t, http.MethodPost, "/api/devices", token, gin.H{
		"name": "garage sensor",
		"type": "sensor",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var device struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &device))
	require.NotEmpty(t, device.ID)
	return device.ID
}

func TestDeviceEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "owner-1")

	rec := f.request(t, http.MethodPost, "/api/devices", "", gin.H{"name": "x", "type": "light"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/devices", token, gin.H{"name": "x", "type": "toaster"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	deviceID := f.createDevice(t, token)

	rec = f.request(t, http.MethodGet, "/api/devices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)

	rec = f.request(t, http.MethodGet, "/api/devices/"+deviceID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user cannot see the device
	otherToken := f.token(t, "owner-2")
	rec = f.request(t, http.MethodGet, "/api/devices/"+deviceID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/devices/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		ByStatus map[string]int64 `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.ByStatus["active"])

	rec = f.request(t, http.MethodPatch, "/api/devices/"+deviceID, token, gin.H{"status": "maintenance"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodDelete, "/api/devices/"+deviceID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/devices/"+deviceID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartbeatEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "owner-1")
	deviceID := f.createDevice(t, token)

	rec := f.request(t, http.MethodPost, "/api/devices/"+deviceID+"/heartbeat", token, gin.H{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	var device struct {
		LastActiveAt *time.Time `json:"last_active_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &device))
	assert.NotNil(t, device.LastActiveAt)

	rec = f.request(t, http.MethodPost, "/api/devices/"+deviceID+"/heartbeat", token, gin.H{"status": "sleeping"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/devices/missing/heartbeat", token, gin.H{"status": "active"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogAndUsageEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "owner-1")
	deviceID := f.createDevice(t, token)

	for _, v := range []float64{5, 15} {
		rec := f.request(t, http.MethodPost, "/api/devices/"+deviceID+"/logs", token, gin.H{
			"event": "energy_usage",
			"value": v,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.request(t, http.MethodGet, "/api/devices/"+deviceID+"/logs?event=energy_usage", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Equal(t, int64(2), logs.Total)

	rec = f.request(t, http.MethodGet, "/api/devices/"+deviceID+"/usage?range=24h", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Range         string  `json:"range"`
		TotalValue    float64 `json:"totalValue"`
		Count         int64   `json:"count"`
		ActivityCount int     `json:"activityCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "24h", report.Range)
	assert.Equal(t, 20.0, report.TotalValue)
	assert.Equal(t, int64(2), report.Count)
	assert.Equal(t, 2, report.ActivityCount)

	// Unknown range falls back to the default
	rec = f.request(t, http.MethodGet, "/api/devices/"+deviceID+"/usage?range=90d", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "24h", report.Range)
}

func TestInternalEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	t.Setenv("INTERNAL_API_SECRET", "internal-secret")

	token := f.token(t, "owner-1")
	deviceID := f.createDevice(t, token)

	rec := f.request(t, http.MethodPost, "/internal/devices/validate", "", gin.H{
		"owner_id": "owner-1", "device_id": deviceID,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodPost, "/internal/devices/validate", "internal-secret", gin.H{
		"owner_id": "owner-1", "device_id": deviceID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var validate struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validate))
	assert.True(t, validate.Exists)

	rec = f.request(t, http.MethodPost, "/internal/logs", "internal-secret", gin.H{
		"owner_id": "owner-1", "device_id": deviceID, "event": "units_consumed", "value": 3.5,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodPost, "/internal/heartbeats", "internal-secret", gin.H{
		"owner_id": "owner-1", "device_id": deviceID, "status": "active",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/internal/heartbeats", "internal-secret", gin.H{
		"owner_id": "owner-1", "device_id": "missing", "status": "active",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
