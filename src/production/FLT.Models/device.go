package fltmodels

import "time"

// Device statuses
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
)

// DeviceTypes lists the allowed device type values
var DeviceTypes = []string{"light", "camera", "sensor", "thermostat", "smart_meter", "switch"}

// Device represents a registered device owned by a user
type Device struct {
	DeviceID     string            `json:"id" db:"device_id" bson:"_id"`
	OwnerID      string            `json:"owner_id" db:"owner_id" bson:"owner_id"`
	Name         string            `json:"name" db:"name" bson:"name"`
	Type         string            `json:"type" db:"device_type" bson:"type"`
	Status       string            `json:"status" db:"status" bson:"status"`
	LastActiveAt *time.Time        `json:"last_active_at" db:"last_active_at" bson:"last_active_at"`
	Metadata     map[string]string `json:"metadata" db:"metadata" bson:"metadata"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// IsValidDeviceType reports whether t is one of the allowed device types
func IsValidDeviceType(t string) bool {
	for _, dt := range DeviceTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s is one of the allowed device statuses
func IsValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive || s == StatusMaintenance
}
