package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

type PostgresLogRepository struct {
	db *sql.DB
}

func NewPostgresLogRepository(db *sql.DB) *PostgresLogRepository {
	return &PostgresLogRepository{db: db}
}

// Insert appends a single log entry
func (r *PostgresLogRepository) Insert(ctx context.Context, entry *fltmodels.LogEntry) (*fltmodels.LogEntry, error) {
	if entry.LogID == "" {
		entry.LogID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	valueJSON, err := json.Marshal(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	metaJSON, err := json.Marshal(ensureMetadataNotNull(entry.Metadata))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO device_logs (log_id, device_id, event, value, ts, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query, entry.LogID, entry.DeviceID, entry.Event, valueJSON, entry.Timestamp, metaJSON)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Query returns a device's logs, newest first
func (r *PostgresLogRepository) Query(ctx context.Context, deviceID string, params interfaces.LogQueryParams) (*interfaces.LogQueryResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	where := `WHERE device_id = $1`
	args := []interface{}{deviceID}
	if params.Event != "" {
		args = append(args, params.Event)
		where += fmt.Sprintf(" AND event = $%d", len(args))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_logs `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`
		SELECT log_id, device_id, event, value, ts, metadata
		FROM device_logs %s
		ORDER BY ts DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := r.scanEntries(rows)
	if err != nil {
		return nil, err
	}

	return &interfaces.LogQueryResult{
		Items: entries,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// SummarizeUsage reduces the numeric values of matching entries in SQL.
// jsonb_typeof keeps string/boolean/object values out of the numeric
// aggregate; an empty window collapses to the all-zero summary via
// COALESCE.
func (r *PostgresLogRepository) SummarizeUsage(ctx context.Context, deviceID string, events []string, since time.Time) (*interfaces.UsageSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE jsonb_typeof(value) = 'number'),
			COALESCE(SUM((value #>> '{}')::numeric) FILTER (WHERE jsonb_typeof(value) = 'number'), 0),
			COALESCE(AVG((value #>> '{}')::numeric) FILTER (WHERE jsonb_typeof(value) = 'number'), 0),
			COALESCE(MAX((value #>> '{}')::numeric) FILTER (WHERE jsonb_typeof(value) = 'number'), 0),
			COALESCE(MIN((value #>> '{}')::numeric) FILTER (WHERE jsonb_typeof(value) = 'number'), 0)
		FROM device_logs
		WHERE device_id = $1 AND event = ANY($2) AND ts >= $3
	`

	var summary interfaces.UsageSummary
	err := r.db.QueryRowContext(ctx, query, deviceID, pq.Array(events), since).
		Scan(&summary.Count, &summary.TotalValue, &summary.AvgValue, &summary.MaxValue, &summary.MinValue)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

// RecentSince returns the newest entries in the window, any event name
func (r *PostgresLogRepository) RecentSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]fltmodels.LogEntry, error) {
	query := `
		SELECT log_id, device_id, event, value, ts, metadata
		FROM device_logs
		WHERE device_id = $1 AND ts >= $2
		ORDER BY ts DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// DeleteByDevice removes every entry for a device
func (r *PostgresLogRepository) DeleteByDevice(ctx context.Context, deviceID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM device_logs WHERE device_id = $1`, deviceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PostgresLogRepository) scanEntries(rows *sql.Rows) ([]fltmodels.LogEntry, error) {
	entries := make([]fltmodels.LogEntry, 0)

	for rows.Next() {
		var entry fltmodels.LogEntry
		var valueJSON, metaJSON []byte

		if err := rows.Scan(&entry.LogID, &entry.DeviceID, &entry.Event, &valueJSON, &entry.Timestamp, &metaJSON); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(valueJSON, &entry.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal value: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
