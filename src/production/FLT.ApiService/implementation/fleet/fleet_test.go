package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Config"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	implementation "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Implementation"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
}

type fixture struct {
	devices   *implementation.MemoryDeviceRepository
	logs      *implementation.MemoryLogRepository
	device    *DeviceService
	heartbeat *HeartbeatService
	log       *LogService
	usage     *UsageService
}

func newFixture() *fixture {
	devices := implementation.NewMemoryDeviceRepository()
	logs := implementation.NewMemoryLogRepository()
	return &fixture{
		devices:   devices,
		logs:      logs,
		device:    NewDeviceService(devices, logs, testLogger()),
		heartbeat: NewHeartbeatService(devices),
		log:       NewLogService(devices, logs),
		usage:     NewUsageService(devices, logs),
	}
}

func (f *fixture) createDevice(t *testing.T, ownerID string) *fltmodels.Device {
	t.Helper()
	device, err := f.device.Create(context.Background(), ownerID, CreateDeviceInput{
		Name: "living room sensor",
		Type: "sensor",
	})
	require.NoError(t, err)
	return device
}

func TestDeviceService_CreateDefaultsAndValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	device := f.createDevice(t, "owner-1")
	assert.Equal(t, fltmodels.StatusActive, device.Status)
	assert.Nil(t, device.LastActiveAt)

	_, err := f.device.Create(ctx, "owner-1", CreateDeviceInput{Name: "x", Type: "toaster"})
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	_, err = f.device.Create(ctx, "owner-1", CreateDeviceInput{Name: "x", Type: "light", Status: "broken"})
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	_, err = f.device.Create(ctx, "owner-1", CreateDeviceInput{Type: "light"})
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestDeviceService_UpdateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	badType := "toaster"
	_, err := f.device.Update(ctx, "owner-1", device.DeviceID, interfaces.DeviceUpdate{Type: &badType})
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	status := fltmodels.StatusMaintenance
	updated, err := f.device.Update(ctx, "owner-1", device.DeviceID, interfaces.DeviceUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusMaintenance, updated.Status)
}

func TestDeviceService_DeleteCascadesLogs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	_, err := f.log.Ingest(ctx, "owner-1", device.DeviceID, "units_consumed", 3.0, nil)
	require.NoError(t, err)
	_, err = f.log.Ingest(ctx, "owner-1", device.DeviceID, "units_consumed", 4.0, nil)
	require.NoError(t, err)

	require.NoError(t, f.device.Delete(ctx, "owner-1", device.DeviceID))

	_, err = f.device.Get(ctx, "owner-1", device.DeviceID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	result, err := f.logs.Query(ctx, device.DeviceID, interfaces.LogQueryParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
}

func TestHeartbeatService(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	_, err := f.heartbeat.Heartbeat(ctx, "owner-1", device.DeviceID, "sleeping")
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	before := time.Now().UTC()
	updated, err := f.heartbeat.Heartbeat(ctx, "owner-1", device.DeviceID, fltmodels.StatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusMaintenance, updated.Status)
	require.NotNil(t, updated.LastActiveAt)
	assert.False(t, updated.LastActiveAt.Before(before))

	// A later heartbeat can pull the device back out of maintenance
	updated, err = f.heartbeat.Heartbeat(ctx, "owner-1", device.DeviceID, fltmodels.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusActive, updated.Status)

	_, err = f.heartbeat.Heartbeat(ctx, "owner-1", "missing", fltmodels.StatusActive)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestLogService_IngestAndQuery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	entry, err := f.log.Ingest(ctx, "owner-1", device.DeviceID, "energy_usage", 2.5, map[string]string{"unit": "kwh"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.LogID)
	assert.False(t, entry.Timestamp.IsZero())

	_, err = f.log.Ingest(ctx, "owner-1", device.DeviceID, "", 1.0, nil)
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	_, err = f.log.Ingest(ctx, "owner-2", device.DeviceID, "energy_usage", 1.0, nil)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	result, err := f.log.Query(ctx, "owner-1", device.DeviceID, interfaces.LogQueryParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	_, err = f.log.Query(ctx, "owner-2", device.DeviceID, interfaces.LogQueryParams{})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestUsageService_Report(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	for _, v := range []float64{10, 20, 30} {
		_, err := f.log.Ingest(ctx, "owner-1", device.DeviceID, "units_consumed", v, nil)
		require.NoError(t, err)
	}
	// Non-measurement event shows in activity but not the aggregate
	_, err := f.log.Ingest(ctx, "owner-1", device.DeviceID, "door_opened", nil, nil)
	require.NoError(t, err)

	report, err := f.usage.Usage(ctx, "owner-1", device.DeviceID, "24h")
	require.NoError(t, err)
	assert.Equal(t, "24h", report.Range)
	assert.Equal(t, int64(3), report.Count)
	assert.Equal(t, 60.0, report.TotalValue)
	assert.Equal(t, 20.0, report.AvgValue)
	assert.Equal(t, 30.0, report.MaxValue)
	assert.Equal(t, 10.0, report.MinValue)
	assert.Equal(t, 4, report.ActivityCount)
}

func TestUsageService_UnknownRangeFallsBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	report, err := f.usage.Usage(ctx, "owner-1", device.DeviceID, "90d")
	require.NoError(t, err)
	assert.Equal(t, fltmodels.DefaultUsageRange, report.Range)
}

func TestUsageService_EmptyWindowIsAllZero(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	report, err := f.usage.Usage(ctx, "owner-1", device.DeviceID, "1h")
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Count)
	assert.Equal(t, 0.0, report.TotalValue)
	assert.Equal(t, 0, report.ActivityCount)
	assert.Empty(t, report.RecentActivity)
}

func TestUsageService_RecentActivityCapped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	device := f.createDevice(t, "owner-1")

	for i := 0; i < RecentActivityLimit+10; i++ {
		_, err := f.log.Ingest(ctx, "owner-1", device.DeviceID, "energy_usage", float64(i), nil)
		require.NoError(t, err)
	}

	report, err := f.usage.Usage(ctx, "owner-1", device.DeviceID, "24h")
	require.NoError(t, err)
	assert.Equal(t, RecentActivityLimit, report.ActivityCount)
	assert.Len(t, report.RecentActivity, RecentActivityLimit)
	assert.Equal(t, int64(RecentActivityLimit+10), report.Count)
}

func TestUsageService_UnknownDevice(t *testing.T) {
	f := newFixture()

	_, err := f.usage.Usage(context.Background(), "owner-1", "missing", "24h")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
