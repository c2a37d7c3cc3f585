package implementation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

func insertEntry(t *testing.T, repo *MemoryLogRepository, deviceID, event string, value interface{}, ts time.Time) {
	t.Helper()
	_, err := repo.Insert(context.Background(), &fltmodels.LogEntry{
		DeviceID:  deviceID,
		Event:     event,
		Value:     value,
		Timestamp: ts,
	})
	require.NoError(t, err)
}

func TestMemoryLogRepository_SummarizeUsage(t *testing.T) {
	repo := NewMemoryLogRepository()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	insertEntry(t, repo, "dev-1", "units_consumed", 10.0, now.Add(-1*time.Hour))
	insertEntry(t, repo, "dev-1", "energy_usage", 20.0, now.Add(-2*time.Hour))
	insertEntry(t, repo, "dev-1", "power_consumption", 30.0, now.Add(-3*time.Hour))

	summary, err := repo.SummarizeUsage(context.Background(), "dev-1", fltmodels.MeasurementEvents, since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, 60.0, summary.TotalValue)
	assert.Equal(t, 20.0, summary.AvgValue)
	assert.Equal(t, 30.0, summary.MaxValue)
	assert.Equal(t, 10.0, summary.MinValue)
}

func TestMemoryLogRepository_SummarizeUsage_WindowBoundaryInclusive(t *testing.T) {
	repo := NewMemoryLogRepository()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	// Exactly at the boundary counts; one nanosecond older does not
	insertEntry(t, repo, "dev-1", "energy_usage", 5.0, since)
	insertEntry(t, repo, "dev-1", "energy_usage", 7.0, since.Add(-time.Nanosecond))

	summary, err := repo.SummarizeUsage(context.Background(), "dev-1", fltmodels.MeasurementEvents, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Count)
	assert.Equal(t, 5.0, summary.TotalValue)
}

func TestMemoryLogRepository_SummarizeUsage_ExcludesNonNumericAndOtherEvents(t *testing.T) {
	repo := NewMemoryLogRepository()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	insertEntry(t, repo, "dev-1", "units_consumed", 12.5, now.Add(-time.Hour))
	insertEntry(t, repo, "dev-1", "units_consumed", "not-a-number", now.Add(-time.Hour))
	insertEntry(t, repo, "dev-1", "units_consumed", map[string]interface{}{"v": 3}, now.Add(-time.Hour))
	insertEntry(t, repo, "dev-1", "door_opened", 99.0, now.Add(-time.Hour))

	summary, err := repo.SummarizeUsage(context.Background(), "dev-1", fltmodels.MeasurementEvents, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Count)
	assert.Equal(t, 12.5, summary.TotalValue)
}

func TestMemoryLogRepository_SummarizeUsage_EmptyWindowIsAllZero(t *testing.T) {
	repo := NewMemoryLogRepository()

	summary, err := repo.SummarizeUsage(context.Background(), "dev-unknown", fltmodels.MeasurementEvents, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Count)
	assert.Equal(t, 0.0, summary.TotalValue)
	assert.Equal(t, 0.0, summary.AvgValue)
	assert.Equal(t, 0.0, summary.MaxValue)
	assert.Equal(t, 0.0, summary.MinValue)
}

func TestMemoryLogRepository_RecentSince(t *testing.T) {
	repo := NewMemoryLogRepository()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	for i := 0; i < 60; i++ {
		insertEntry(t, repo, "dev-1", "energy_usage", float64(i), now.Add(-time.Duration(i)*time.Minute))
	}
	insertEntry(t, repo, "dev-1", "energy_usage", 999.0, now.Add(-48*time.Hour))

	recent, err := repo.RecentSince(context.Background(), "dev-1", since, 50)
	require.NoError(t, err)
	require.Len(t, recent, 50)

	// Newest first
	assert.Equal(t, 0.0, recent[0].Value)
	assert.True(t, recent[0].Timestamp.After(recent[49].Timestamp))
}

func TestMemoryLogRepository_QueryFiltersAndPaginates(t *testing.T) {
	repo := NewMemoryLogRepository()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		insertEntry(t, repo, "dev-1", "energy_usage", float64(i), now.Add(-time.Duration(i)*time.Minute))
	}
	insertEntry(t, repo, "dev-1", "door_opened", nil, now)

	result, err := repo.Query(context.Background(), "dev-1", interfaces.LogQueryParams{Event: "energy_usage", Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Len(t, result.Items, 3)
	assert.Equal(t, "energy_usage", result.Items[0].Event)
}

func TestMemoryLogRepository_DeleteByDevice(t *testing.T) {
	repo := NewMemoryLogRepository()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		insertEntry(t, repo, "dev-1", "units_consumed", float64(i), now)
	}
	insertEntry(t, repo, "dev-2", "units_consumed", 1.0, now)

	deleted, err := repo.DeleteByDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	result, err := repo.Query(context.Background(), "dev-1", interfaces.LogQueryParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)

	other, err := repo.Query(context.Background(), "dev-2", interfaces.LogQueryParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Total)
}

func TestNumericValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{42.5, 42.5, true},
		{int(7), 7, true},
		{int64(9), 9, true},
		{"12", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v", tc.in), func(t *testing.T) {
			got, ok := numericValue(tc.in)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
