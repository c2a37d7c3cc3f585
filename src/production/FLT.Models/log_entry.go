package fltmodels

import "time"

// MeasurementEvents are the consumption-class event names that feed the
// numeric usage aggregation.
var MeasurementEvents = []string{"units_consumed", "energy_usage", "power_consumption"}

// LogEntry is a single telemetry event emitted by a device. Entries are
// append-only: once written they are never updated, only removed when
// the owning device is deleted.
type LogEntry struct {
	LogID     string            `json:"id" db:"log_id" bson:"_id"`
	DeviceID  string            `json:"device_id" db:"device_id" bson:"device_id"`
	Event     string            `json:"event" db:"event" bson:"event"`
	Value     interface{}       `json:"value" db:"value" bson:"value"`
	Timestamp time.Time         `json:"timestamp" db:"ts" bson:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"metadata" bson:"metadata,omitempty"`
}

// UsageRanges maps the supported usage query ranges to their lookback
// durations.
var UsageRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// DefaultUsageRange is applied when the caller supplies no range or an
// unknown one.
const DefaultUsageRange = "24h"

// UsageLookback resolves a range spec to its lookback duration, falling
// back to the default range for unknown values.
func UsageLookback(rangeSpec string) (string, time.Duration) {
	if d, ok := UsageRanges[rangeSpec]; ok {
		return rangeSpec, d
	}
	return DefaultUsageRange, UsageRanges[DefaultUsageRange]
}
