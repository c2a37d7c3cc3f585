package implementation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// MemoryDeviceRepository is the in-process backend used when
// STORAGE_BACKEND=memory and by the unit tests. A single mutex guards
// every operation, which makes DeactivateIfStale and RecordHeartbeat
// atomic with respect to each other.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*fltmodels.Device
}

func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{devices: make(map[string]*fltmodels.Device)}
}

func (r *MemoryDeviceRepository) Create(_ context.Context, device *fltmodels.Device) (*fltmodels.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if device.DeviceID == "" {
		device.DeviceID = uuid.New().String()
	}
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now
	device.Metadata = ensureMetadataNotNull(device.Metadata)

	stored := *device
	r.devices[device.DeviceID] = &stored
	return copyDevice(&stored), nil
}

func (r *MemoryDeviceRepository) GetByID(_ context.Context, ownerID, deviceID string) (*fltmodels.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return nil, interfaces.ErrNotFound
	}
	return copyDevice(device), nil
}

func (r *MemoryDeviceRepository) List(_ context.Context, ownerID string, params interfaces.DeviceQueryParams) (*interfaces.DeviceQueryResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	var matched []fltmodels.Device
	for _, device := range r.devices {
		if device.OwnerID != ownerID {
			continue
		}
		if params.Type != "" && device.Type != params.Type {
			continue
		}
		if params.Status != "" && device.Status != params.Status {
			continue
		}
		matched = append(matched, *copyDevice(device))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	return &interfaces.DeviceQueryResult{
		Items: matched[start:end],
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func (r *MemoryDeviceRepository) Stats(_ context.Context, ownerID string) (*interfaces.DeviceStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &interfaces.DeviceStats{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
	}
	for _, device := range r.devices {
		if device.OwnerID != ownerID {
			continue
		}
		stats.ByStatus[device.Status]++
		stats.ByType[device.Type]++
	}
	return stats, nil
}

func (r *MemoryDeviceRepository) Update(_ context.Context, ownerID, deviceID string, update interfaces.DeviceUpdate) (*fltmodels.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return nil, interfaces.ErrNotFound
	}

	if update.Name != nil {
		device.Name = *update.Name
	}
	if update.Type != nil {
		device.Type = *update.Type
	}
	if update.Status != nil {
		device.Status = *update.Status
	}
	if update.Metadata != nil {
		device.Metadata = update.Metadata
	}
	device.UpdatedAt = time.Now().UTC()

	return copyDevice(device), nil
}

func (r *MemoryDeviceRepository) Delete(_ context.Context, ownerID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return interfaces.ErrNotFound
	}
	delete(r.devices, deviceID)
	return nil
}

func (r *MemoryDeviceRepository) RecordHeartbeat(_ context.Context, ownerID, deviceID, status string, at time.Time) (*fltmodels.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return nil, interfaces.ErrNotFound
	}

	ts := at
	device.LastActiveAt = &ts
	device.Status = status
	device.UpdatedAt = at

	return copyDevice(device), nil
}

func (r *MemoryDeviceRepository) ListStaleActive(_ context.Context, cutoff time.Time) ([]fltmodels.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []fltmodels.Device
	for _, device := range r.devices {
		if device.Status != fltmodels.StatusActive {
			continue
		}
		if device.LastActiveAt == nil || !device.LastActiveAt.Before(cutoff) {
			continue
		}
		stale = append(stale, *copyDevice(device))
	}
	return stale, nil
}

func (r *MemoryDeviceRepository) DeactivateIfStale(_ context.Context, deviceID string, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return false, nil
	}
	// Re-check under the lock: a heartbeat that landed after the scan
	// leaves the device alone.
	if device.Status != fltmodels.StatusActive {
		return false, nil
	}
	if device.LastActiveAt == nil || !device.LastActiveAt.Before(cutoff) {
		return false, nil
	}

	device.Status = fltmodels.StatusInactive
	device.UpdatedAt = time.Now().UTC()
	return true, nil
}

func copyDevice(device *fltmodels.Device) *fltmodels.Device {
	out := *device
	if device.LastActiveAt != nil {
		ts := *device.LastActiveAt
		out.LastActiveAt = &ts
	}
	if device.Metadata != nil {
		out.Metadata = make(map[string]string, len(device.Metadata))
		for k, v := range device.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
