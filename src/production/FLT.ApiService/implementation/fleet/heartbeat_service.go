package fleet

import (
	"context"
	"fmt"
	"time"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// HeartbeatService records that a device is alive and refreshes its
// declared status.
type HeartbeatService struct {
	devices interfaces.DeviceRepository
}

// NewHeartbeatService creates a new heartbeat service
func NewHeartbeatService(devices interfaces.DeviceRepository) *HeartbeatService {
	return &HeartbeatService{devices: devices}
}

// Heartbeat advances last_active_at to now and sets the declared
// status. Any of the three statuses is accepted, maintenance included;
// a heartbeat may also move a device out of maintenance.
func (s *HeartbeatService) Heartbeat(ctx context.Context, ownerID, deviceID, status string) (*fltmodels.Device, error) {
	if !fltmodels.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", interfaces.ErrValidation, status)
	}

	return s.devices.RecordHeartbeat(ctx, ownerID, deviceID, status, time.Now().UTC())
}
