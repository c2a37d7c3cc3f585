package fleet

import (
	"context"
	"fmt"
	"time"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// LogService is the append-only ingestion and query path for telemetry.
type LogService struct {
	devices interfaces.DeviceRepository
	logs    interfaces.LogRepository
}

// NewLogService creates a new log service
func NewLogService(devices interfaces.DeviceRepository, logs interfaces.LogRepository) *LogService {
	return &LogService{
		devices: devices,
		logs:    logs,
	}
}

// Ingest appends a telemetry event for an owned device. The timestamp
// is always server-assigned.
func (s *LogService) Ingest(ctx context.Context, ownerID, deviceID, event string, value interface{}, metadata map[string]string) (*fltmodels.LogEntry, error) {
	if event == "" {
		return nil, fmt.Errorf("%w: event is required", interfaces.ErrValidation)
	}

	if _, err := s.devices.GetByID(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}

	entry := &fltmodels.LogEntry{
		DeviceID:  deviceID,
		Event:     event,
		Value:     value,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	return s.logs.Insert(ctx, entry)
}

// Query returns an owned device's logs, newest first
func (s *LogService) Query(ctx context.Context, ownerID, deviceID string, params interfaces.LogQueryParams) (*interfaces.LogQueryResult, error) {
	if _, err := s.devices.GetByID(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}

	return s.logs.Query(ctx, deviceID, params)
}
