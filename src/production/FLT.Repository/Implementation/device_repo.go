package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

type PostgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `device_id, owner_id, name, device_type, status, last_active_at, metadata, created_at, updated_at`

// Create device
func (r *PostgresDeviceRepository) Create(ctx context.Context, device *fltmodels.Device) (*fltmodels.Device, error) {
	if device.DeviceID == "" {
		device.DeviceID = uuid.New().String()
	}
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now
	device.Metadata = ensureMetadataNotNull(device.Metadata)

	query := `
		INSERT INTO devices (device_id, owner_id, name, device_type, status, last_active_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	metaJSON, err := json.Marshal(device.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, device.DeviceID, device.OwnerID, device.Name,
		device.Type, device.Status, device.LastActiveAt, metaJSON, device.CreatedAt, device.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return device, nil
}

// Read devices
func (r *PostgresDeviceRepository) GetByID(ctx context.Context, ownerID, deviceID string) (*fltmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1 AND owner_id = $2`

	device, err := r.scanDevice(r.db.QueryRowContext(ctx, query, deviceID, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}

	return device, nil
}

func (r *PostgresDeviceRepository) List(ctx context.Context, ownerID string, params interfaces.DeviceQueryParams) (*interfaces.DeviceQueryResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	where := `WHERE owner_id = $1`
	args := []interface{}{ownerID}
	if params.Type != "" {
		args = append(args, params.Type)
		where += fmt.Sprintf(" AND device_type = $%d", len(args))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM devices %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		deviceColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]fltmodels.Device, 0)
	for rows.Next() {
		device, err := r.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &interfaces.DeviceQueryResult{
		Items: devices,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func (r *PostgresDeviceRepository) Stats(ctx context.Context, ownerID string) (*interfaces.DeviceStats, error) {
	stats := &interfaces.DeviceStats{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
	}

	grouped := map[string]map[string]int64{
		`SELECT status, COUNT(*) FROM devices WHERE owner_id = $1 GROUP BY status`:      stats.ByStatus,
		`SELECT device_type, COUNT(*) FROM devices WHERE owner_id = $1 GROUP BY device_type`: stats.ByType,
	}

	for query, dest := range grouped {
		rows, err := r.db.QueryContext(ctx, query, ownerID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, err
			}
			dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return stats, nil
}

// Update device
func (r *PostgresDeviceRepository) Update(ctx context.Context, ownerID, deviceID string, update interfaces.DeviceUpdate) (*fltmodels.Device, error) {
	set := `SET updated_at = $1`
	args := []interface{}{time.Now().UTC()}

	if update.Name != nil {
		args = append(args, *update.Name)
		set += fmt.Sprintf(", name = $%d", len(args))
	}
	if update.Type != nil {
		args = append(args, *update.Type)
		set += fmt.Sprintf(", device_type = $%d", len(args))
	}
	if update.Status != nil {
		args = append(args, *update.Status)
		set += fmt.Sprintf(", status = $%d", len(args))
	}
	if update.Metadata != nil {
		metaJSON, err := json.Marshal(update.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		args = append(args, metaJSON)
		set += fmt.Sprintf(", metadata = $%d", len(args))
	}

	args = append(args, deviceID, ownerID)
	query := fmt.Sprintf(`UPDATE devices %s WHERE device_id = $%d AND owner_id = $%d RETURNING %s`,
		set, len(args)-1, len(args), deviceColumns)

	device, err := r.scanDevice(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}

	return device, nil
}

// Delete device
func (r *PostgresDeviceRepository) Delete(ctx context.Context, ownerID, deviceID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1 AND owner_id = $2`, deviceID, ownerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

// RecordHeartbeat sets last_active_at and the declared status in one write
func (r *PostgresDeviceRepository) RecordHeartbeat(ctx context.Context, ownerID, deviceID, status string, at time.Time) (*fltmodels.Device, error) {
	query := `
		UPDATE devices
		SET last_active_at = $1, status = $2, updated_at = $1
		WHERE device_id = $3 AND owner_id = $4
		RETURNING ` + deviceColumns

	device, err := r.scanDevice(r.db.QueryRowContext(ctx, query, at, status, deviceID, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}

	return device, nil
}

// ListStaleActive returns active devices whose last_active_at is before cutoff
func (r *PostgresDeviceRepository) ListStaleActive(ctx context.Context, cutoff time.Time) ([]fltmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE status = $1 AND last_active_at IS NOT NULL AND last_active_at < $2`

	rows, err := r.db.QueryContext(ctx, query, fltmodels.StatusActive, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []fltmodels.Device
	for rows.Next() {
		device, err := r.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}

	return devices, rows.Err()
}

// DeactivateIfStale is the conditional write half of the sweep. The
// status and staleness checks are part of the UPDATE predicate, so a
// heartbeat landing between the scan and this write leaves the device
// untouched.
func (r *PostgresDeviceRepository) DeactivateIfStale(ctx context.Context, deviceID string, cutoff time.Time) (bool, error) {
	query := `
		UPDATE devices
		SET status = $1, updated_at = $2
		WHERE device_id = $3 AND status = $4 AND last_active_at IS NOT NULL AND last_active_at < $5
	`

	result, err := r.db.ExecContext(ctx, query, fltmodels.StatusInactive, time.Now().UTC(),
		deviceID, fltmodels.StatusActive, cutoff)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresDeviceRepository) scanDevice(row rowScanner) (*fltmodels.Device, error) {
	var device fltmodels.Device
	var lastActive sql.NullTime
	var metaJSON []byte

	err := row.Scan(&device.DeviceID, &device.OwnerID, &device.Name, &device.Type,
		&device.Status, &lastActive, &metaJSON, &device.CreatedAt, &device.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastActive.Valid {
		t := lastActive.Time
		device.LastActiveAt = &t
	}
	if err := json.Unmarshal(metaJSON, &device.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &device, nil
}
