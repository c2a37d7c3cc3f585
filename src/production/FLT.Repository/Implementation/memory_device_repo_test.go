package implementation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

func newTestDevice(ownerID, name, deviceType, status string) *fltmodels.Device {
	return &fltmodels.Device{
		OwnerID: ownerID,
		Name:    name,
		Type:    deviceType,
		Status:  status,
	}
}

func TestMemoryDeviceRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestDevice("owner-1", "hall light", "light", fltmodels.StatusActive))
	require.NoError(t, err)
	require.NotEmpty(t, created.DeviceID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.LastActiveAt)

	got, err := repo.GetByID(ctx, "owner-1", created.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, "hall light", got.Name)

	_, err = repo.GetByID(ctx, "other-owner", created.DeviceID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = repo.GetByID(ctx, "owner-1", "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestMemoryDeviceRepository_ListFilters(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	for _, d := range []*fltmodels.Device{
		newTestDevice("owner-1", "light-a", "light", fltmodels.StatusActive),
		newTestDevice("owner-1", "light-b", "light", fltmodels.StatusInactive),
		newTestDevice("owner-1", "cam-a", "camera", fltmodels.StatusActive),
		newTestDevice("owner-2", "light-c", "light", fltmodels.StatusActive),
	} {
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, "owner-1", interfaces.DeviceQueryParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	lights, err := repo.List(ctx, "owner-1", interfaces.DeviceQueryParams{Type: "light"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), lights.Total)

	active, err := repo.List(ctx, "owner-1", interfaces.DeviceQueryParams{Status: fltmodels.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(2), active.Total)

	paged, err := repo.List(ctx, "owner-1", interfaces.DeviceQueryParams{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), paged.Total)
	assert.Len(t, paged.Items, 1)
}

func TestMemoryDeviceRepository_Stats(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	for _, d := range []*fltmodels.Device{
		newTestDevice("owner-1", "a", "light", fltmodels.StatusActive),
		newTestDevice("owner-1", "b", "light", fltmodels.StatusInactive),
		newTestDevice("owner-1", "c", "sensor", fltmodels.StatusActive),
	} {
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	stats, err := repo.Stats(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ByStatus[fltmodels.StatusActive])
	assert.Equal(t, int64(1), stats.ByStatus[fltmodels.StatusInactive])
	assert.Equal(t, int64(2), stats.ByType["light"])
	assert.Equal(t, int64(1), stats.ByType["sensor"])
}

func TestMemoryDeviceRepository_RecordHeartbeat(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestDevice("owner-1", "therm", "thermostat", fltmodels.StatusMaintenance))
	require.NoError(t, err)

	at := time.Now().UTC()
	updated, err := repo.RecordHeartbeat(ctx, "owner-1", created.DeviceID, fltmodels.StatusActive, at)
	require.NoError(t, err)
	require.NotNil(t, updated.LastActiveAt)
	assert.True(t, updated.LastActiveAt.Equal(at))
	assert.Equal(t, fltmodels.StatusActive, updated.Status)

	_, err = repo.RecordHeartbeat(ctx, "other-owner", created.DeviceID, fltmodels.StatusActive, at)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestMemoryDeviceRepository_DeactivateIfStale(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestDevice("owner-1", "meter", "smart_meter", fltmodels.StatusActive))
	require.NoError(t, err)

	staleAt := time.Now().UTC().Add(-48 * time.Hour)
	_, err = repo.RecordHeartbeat(ctx, "owner-1", created.DeviceID, fltmodels.StatusActive, staleAt)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	stale, err := repo.ListStaleActive(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	deactivated, err := repo.DeactivateIfStale(ctx, created.DeviceID, cutoff)
	require.NoError(t, err)
	assert.True(t, deactivated)

	got, err := repo.GetByID(ctx, "owner-1", created.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusInactive, got.Status)
	require.NotNil(t, got.LastActiveAt)
	assert.True(t, got.LastActiveAt.Equal(staleAt), "deactivation must not touch last_active_at")

	// Already inactive: a second pass is a no-op
	deactivated, err = repo.DeactivateIfStale(ctx, created.DeviceID, cutoff)
	require.NoError(t, err)
	assert.False(t, deactivated)
}

func TestMemoryDeviceRepository_DeactivateIfStale_HeartbeatWins(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestDevice("owner-1", "meter", "smart_meter", fltmodels.StatusActive))
	require.NoError(t, err)

	staleAt := time.Now().UTC().Add(-48 * time.Hour)
	_, err = repo.RecordHeartbeat(ctx, "owner-1", created.DeviceID, fltmodels.StatusActive, staleAt)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	stale, err := repo.ListStaleActive(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	// A heartbeat lands between the scan and the conditional write
	_, err = repo.RecordHeartbeat(ctx, "owner-1", created.DeviceID, fltmodels.StatusActive, time.Now().UTC())
	require.NoError(t, err)

	deactivated, err := repo.DeactivateIfStale(ctx, created.DeviceID, cutoff)
	require.NoError(t, err)
	assert.False(t, deactivated)

	got, err := repo.GetByID(ctx, "owner-1", created.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, fltmodels.StatusActive, got.Status)
}

func TestMemoryDeviceRepository_StaleScanSkipsMaintenanceAndMissingHeartbeat(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	maint, err := repo.Create(ctx, newTestDevice("owner-1", "m", "sensor", fltmodels.StatusMaintenance))
	require.NoError(t, err)
	staleAt := time.Now().UTC().Add(-48 * time.Hour)
	_, err = repo.RecordHeartbeat(ctx, "owner-1", maint.DeviceID, fltmodels.StatusMaintenance, staleAt)
	require.NoError(t, err)

	// Active but never heartbeated
	_, err = repo.Create(ctx, newTestDevice("owner-1", "n", "sensor", fltmodels.StatusActive))
	require.NoError(t, err)

	stale, err := repo.ListStaleActive(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestMemoryDeviceRepository_UpdateAndDelete(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestDevice("owner-1", "old name", "switch", fltmodels.StatusActive))
	require.NoError(t, err)

	name := "new name"
	status := fltmodels.StatusMaintenance
	updated, err := repo.Update(ctx, "owner-1", created.DeviceID, interfaces.DeviceUpdate{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "new name", updated.Name)
	assert.Equal(t, fltmodels.StatusMaintenance, updated.Status)

	require.NoError(t, repo.Delete(ctx, "owner-1", created.DeviceID))
	assert.ErrorIs(t, repo.Delete(ctx, "owner-1", created.DeviceID), interfaces.ErrNotFound)
}
