package fleet

import (
	"context"
	"fmt"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// DeviceService owns device identity and status, scoped per owner.
type DeviceService struct {
	devices interfaces.DeviceRepository
	logs    interfaces.LogRepository
	logger  *logger.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(devices interfaces.DeviceRepository, logs interfaces.LogRepository, logger *logger.Logger) *DeviceService {
	return &DeviceService{
		devices: devices,
		logs:    logs,
		logger:  logger,
	}
}

// CreateDeviceInput carries the caller-supplied fields for registration
type CreateDeviceInput struct {
	Name     string
	Type     string
	Status   string
	Metadata map[string]string
}

// Create registers a new device for the owner
func (s *DeviceService) Create(ctx context.Context, ownerID string, in CreateDeviceInput) (*fltmodels.Device, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: device name is required", interfaces.ErrValidation)
	}
	if !fltmodels.IsValidDeviceType(in.Type) {
		return nil, fmt.Errorf("%w: unknown device type %q", interfaces.ErrValidation, in.Type)
	}
	status := in.Status
	if status == "" {
		status = fltmodels.StatusActive
	}
	if !fltmodels.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", interfaces.ErrValidation, status)
	}

	device := &fltmodels.Device{
		OwnerID:  ownerID,
		Name:     in.Name,
		Type:     in.Type,
		Status:   status,
		Metadata: in.Metadata,
	}

	return s.devices.Create(ctx, device)
}

// Get returns a single owned device
func (s *DeviceService) Get(ctx context.Context, ownerID, deviceID string) (*fltmodels.Device, error) {
	return s.devices.GetByID(ctx, ownerID, deviceID)
}

// List returns the owner's devices with optional type/status filters
func (s *DeviceService) List(ctx context.Context, ownerID string, params interfaces.DeviceQueryParams) (*interfaces.DeviceQueryResult, error) {
	if params.Type != "" && !fltmodels.IsValidDeviceType(params.Type) {
		return nil, fmt.Errorf("%w: unknown device type %q", interfaces.ErrValidation, params.Type)
	}
	if params.Status != "" && !fltmodels.IsValidStatus(params.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", interfaces.ErrValidation, params.Status)
	}
	return s.devices.List(ctx, ownerID, params)
}

// Stats returns per-owner device counts grouped by status and type
func (s *DeviceService) Stats(ctx context.Context, ownerID string) (*interfaces.DeviceStats, error) {
	return s.devices.Stats(ctx, ownerID)
}

// Update applies a partial update to an owned device
func (s *DeviceService) Update(ctx context.Context, ownerID, deviceID string, update interfaces.DeviceUpdate) (*fltmodels.Device, error) {
	if update.Type != nil && !fltmodels.IsValidDeviceType(*update.Type) {
		return nil, fmt.Errorf("%w: unknown device type %q", interfaces.ErrValidation, *update.Type)
	}
	if update.Status != nil && !fltmodels.IsValidStatus(*update.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", interfaces.ErrValidation, *update.Status)
	}
	return s.devices.Update(ctx, ownerID, deviceID, update)
}

// Delete removes an owned device and cascades deletion of its logs
func (s *DeviceService) Delete(ctx context.Context, ownerID, deviceID string) error {
	if err := s.devices.Delete(ctx, ownerID, deviceID); err != nil {
		return err
	}

	deleted, err := s.logs.DeleteByDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to cascade log deletion for device %s: %w", deviceID, err)
	}
	s.logger.WithField("device_id", deviceID).WithField("logs_deleted", deleted).Debug("Device deleted with log cascade")

	return nil
}
