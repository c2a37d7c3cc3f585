package interfaces

import (
	"context"
	"time"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
)

// DeviceQueryParams represents filters and pagination for device listings
type DeviceQueryParams struct {
	Type   string
	Status string
	Page   int
	Limit  int
}

// DeviceQueryResult represents a paginated device listing
type DeviceQueryResult struct {
	Items []fltmodels.Device `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// DeviceUpdate carries the mutable device fields; nil means unchanged
type DeviceUpdate struct {
	Name     *string
	Type     *string
	Status   *string
	Metadata map[string]string
}

// DeviceStats represents per-owner device counts grouped by status and type
type DeviceStats struct {
	ByStatus map[string]int64 `json:"by_status"`
	ByType   map[string]int64 `json:"by_type"`
}

type DeviceRepository interface {
	// Create device
	Create(ctx context.Context, device *fltmodels.Device) (*fltmodels.Device, error)

	// Read devices, always scoped to the owning user
	GetByID(ctx context.Context, ownerID, deviceID string) (*fltmodels.Device, error)
	List(ctx context.Context, ownerID string, params DeviceQueryParams) (*DeviceQueryResult, error)
	Stats(ctx context.Context, ownerID string) (*DeviceStats, error)

	// Update device fields
	Update(ctx context.Context, ownerID, deviceID string, update DeviceUpdate) (*fltmodels.Device, error)

	// Delete device; log cascade is handled by the caller via LogRepository
	Delete(ctx context.Context, ownerID, deviceID string) error

	// RecordHeartbeat sets last_active_at and the declared status in one write
	RecordHeartbeat(ctx context.Context, ownerID, deviceID, status string, at time.Time) (*fltmodels.Device, error)

	// Sweep support. ListStaleActive returns active devices whose
	// last_active_at is before cutoff. DeactivateIfStale flips a single
	// device to inactive only if it is still active and still stale at
	// write time, so a concurrent heartbeat is never overwritten.
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]fltmodels.Device, error)
	DeactivateIfStale(ctx context.Context, deviceID string, cutoff time.Time) (bool, error)
}
