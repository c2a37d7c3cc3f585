package sweeper

import (
	"context"
	"errors"
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

func seedDevice(t *testing.T, repo *implementation.MemoryDeviceRepository, status string, lastActive time.Time) *fltmodels.Device {
	t.Helper()
	device, err := repo.Create(context.Background(), &fltmodels.Device{
		OwnerID: "owner-1",
		Name:    "meter",
		Type:    "smart_meter",
		Status:  status,
	})
	require.NoError(t, err)
	if !lastActive.IsZero() {
		_, err = repo.RecordHeartbeat(context.Background(), "owner-1", device.DeviceID, status, lastActive)
		require.NoError(t, err)
	}
	return device
}

func TestSweeper_RunOnce_DeactivatesStaleDevices(t *testing.T) {
	repo := implementation.NewMemoryDeviceRepository()
	ctx := context.Background()

	staleAt := time.Now().UTC().Add(-48 * time.Hour)
	stale := seedDevice(t, repo, fltmodels.StatusActive, staleAt)
	fresh := seedDevice(t, repo, fltmodels.StatusActive, time.Now().UTC())
	maint := seedDevice(t, repo, fltmodels.StatusMaintenance, staleAt)

	s := New(repo, testLogger(), Config{Interval: time.Hour, Threshold: 24 * time.Hour})

	swept, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := repo.GetByID(ctx, "owner-1", stale.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusInactive, got.Status)
	require.NotNil(t, got.LastActiveAt)
	assert.True(t, got.LastActiveAt.Equal(staleAt), "sweep must not modify last_active_at")

	got, err = repo.GetByID(ctx, "owner-1", fresh.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusActive, got.Status)

	got, err = repo.GetByID(ctx, "owner-1", maint.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusMaintenance, got.Status)
}

func TestSweeper_RunOnce_Idempotent(t *testing.T) {
	repo := implementation.NewMemoryDeviceRepository()
	seedDevice(t, repo, fltmodels.StatusActive, time.Now().UTC().Add(-48*time.Hour))

	s := New(repo, testLogger(), Config{Interval: time.Hour, Threshold: 24 * time.Hour})

	swept, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	swept, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

// flakyDeviceRepo fails the conditional write for one device ID
type flakyDeviceRepo struct {
	interfaces.DeviceRepository
	failID string
}

func (r *flakyDeviceRepo) DeactivateIfStale(ctx context.Context, deviceID string, cutoff time.Time) (bool, error) {
	if deviceID == r.failID {
		return false, errors.New("storage unavailable")
	}
	return r.DeviceRepository.DeactivateIfStale(ctx, deviceID, cutoff)
}

func TestSweeper_RunOnce_ContinuesPastDeviceFailure(t *testing.T) {
	mem := implementation.NewMemoryDeviceRepository()
	staleAt := time.Now().UTC().Add(-48 * time.Hour)
	failing := seedDevice(t, mem, fltmodels.StatusActive, staleAt)
	healthy := seedDevice(t, mem, fltmodels.StatusActive, staleAt)

	repo := &flakyDeviceRepo{DeviceRepository: mem, failID: failing.DeviceID}
	s := New(repo, testLogger(), Config{Interval: time.Hour, Threshold: 24 * time.Hour})

	swept, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := mem.GetByID(context.Background(), "owner-1", healthy.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusInactive, got.Status)

	got, err = mem.GetByID(context.Background(), "owner-1", failing.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusActive, got.Status)
}

// scanErrRepo fails the stale scan itself
type scanErrRepo struct {
	interfaces.DeviceRepository
}

func (r *scanErrRepo) ListStaleActive(ctx context.Context, cutoff time.Time) ([]fltmodels.Device, error) {
	return nil, errors.New("storage unavailable")
}

func TestSweeper_RunOnce_ScanFailure(t *testing.T) {
	repo := &scanErrRepo{DeviceRepository: implementation.NewMemoryDeviceRepository()}
	s := New(repo, testLogger(), Config{Interval: time.Hour, Threshold: 24 * time.Hour})

	swept, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, swept)
}

func TestSweeper_StartStop(t *testing.T) {
	repo := implementation.NewMemoryDeviceRepository()
	s := New(repo, testLogger(), Config{Interval: 10 * time.Millisecond, Threshold: 24 * time.Hour})

	seedDevice(t, repo, fltmodels.StatusActive, time.Now().UTC().Add(-48*time.Hour))

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		stale, err := repo.ListStaleActive(context.Background(), time.Now().UTC().Add(-24*time.Hour))
		return err == nil && len(stale) == 0
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}
