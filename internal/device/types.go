package device

import "time"

// Device represents a physical field sensor attached to a refrigerated
// shipment. Devices are identified by a stable hardware identifier
// (ExternalID) and are created implicitly the first time an unknown
// identifier submits a reading.
type Device struct {
	// Identity
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`

	// Classification
	Type DeviceType `json:"type"`

	// DisplayName is human-facing. Auto-registered devices get a
	// generated name until an operator renames them.
	DisplayName string `json:"display_name"`

	// Active indicates whether the device is accepted for ingestion.
	// Deactivation is an external administrative concern; this core
	// never flips the flag.
	Active bool `json:"active"`

	// Heartbeat projection, updated best-effort on every ingestion.
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	BatteryLevel *float64   `json:"battery_level,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns an independent copy of the Device.
// Pointer fields are re-allocated so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.LastSeenAt != nil {
		t := *d.LastSeenAt
		cpy.LastSeenAt = &t
	}
	if d.BatteryLevel != nil {
		b := *d.BatteryLevel
		cpy.BatteryLevel = &b
	}

	return &cpy
}

// DeviceType represents the kind of sensor hardware.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// DeviceType constants.
const (
	DeviceTypeTemperatureHumidity DeviceType = "temperature_humidity"
	DeviceTypeTemperature         DeviceType = "temperature"
	DeviceTypeHumidity            DeviceType = "humidity"
	DeviceTypeGPSTracker          DeviceType = "gps_tracker"
	DeviceTypeMultiSensor         DeviceType = "multi_sensor"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		DeviceTypeTemperatureHumidity,
		DeviceTypeTemperature,
		DeviceTypeHumidity,
		DeviceTypeGPSTracker,
		DeviceTypeMultiSensor,
	}
}

// Heartbeat carries the per-reading device health fields.
// Both fields are optional; a missing value leaves the stored
// projection untouched.
type Heartbeat struct {
	LastSeenAt   time.Time
	BatteryLevel *float64
}
