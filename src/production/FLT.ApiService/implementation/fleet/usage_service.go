package fleet

import (
	"context"
	"time"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// RecentActivityLimit caps the recent entries returned with a usage report.
const RecentActivityLimit = 50

// UsageReport is the windowed aggregation over a device's telemetry.
type UsageReport struct {
	DeviceID       string               `json:"device_id"`
	Range          string               `json:"range"`
	TotalValue     float64              `json:"totalValue"`
	Count          int64                `json:"count"`
	AvgValue       float64              `json:"avgValue"`
	MaxValue       float64              `json:"maxValue"`
	MinValue       float64              `json:"minValue"`
	ActivityCount  int                  `json:"activityCount"`
	RecentActivity []fltmodels.LogEntry `json:"recentActivity"`
}

// UsageService computes summary statistics over a device's recent
// telemetry for a bounded window.
type UsageService struct {
	devices interfaces.DeviceRepository
	logs    interfaces.LogRepository
}

// NewUsageService creates a new usage service
func NewUsageService(devices interfaces.DeviceRepository, logs interfaces.LogRepository) *UsageService {
	return &UsageService{
		devices: devices,
		logs:    logs,
	}
}

// Usage aggregates the measurement events of an owned device within the
// requested range. Unknown ranges fall back to the 24h default. A
// window with no matching entries yields the all-zero report, not an
// error.
func (s *UsageService) Usage(ctx context.Context, ownerID, deviceID, rangeSpec string) (*UsageReport, error) {
	if _, err := s.devices.GetByID(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}

	rng, lookback := fltmodels.UsageLookback(rangeSpec)
	since := time.Now().UTC().Add(-lookback)

	summary, err := s.logs.SummarizeUsage(ctx, deviceID, fltmodels.MeasurementEvents, since)
	if err != nil {
		return nil, err
	}

	recent, err := s.logs.RecentSince(ctx, deviceID, since, RecentActivityLimit)
	if err != nil {
		return nil, err
	}

	return &UsageReport{
		DeviceID:       deviceID,
		Range:          rng,
		TotalValue:     summary.TotalValue,
		Count:          summary.Count,
		AvgValue:       summary.AvgValue,
		MaxValue:       summary.MaxValue,
		MinValue:       summary.MinValue,
		ActivityCount:  len(recent),
		RecentActivity: recent,
	}, nil
}
