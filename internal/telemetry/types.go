package telemetry

import (
	"time"

	"github.com/petalworks/coldchain-core/internal/shipment"
)

// AlertType identifies which bound a reading violated.
type AlertType string

// Alert types, one per violated bound.
const (
	AlertTemperatureLow  AlertType = "temperature_low"
	AlertTemperatureHigh AlertType = "temperature_high"
	AlertHumidityLow     AlertType = "humidity_low"
	AlertHumidityHigh    AlertType = "humidity_high"
)

// Severity classifies how urgent a violation is.
type Severity string

// Severities. Temperature breaches spoil cargo fast and are always
// critical; humidity drift degrades quality more slowly.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Measurements is the sparse set of sensor values in one submission.
// Every field is independently optional: a nil pointer means the device
// did not report that channel, which is distinct from reporting zero.
type Measurements struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Altitude       *float64 `json:"altitude,omitempty"`
	BatteryLevel   *float64 `json:"battery_level,omitempty"`
	SignalStrength *float64 `json:"signal_strength,omitempty"`
}

// Empty reports whether no measurement channel was supplied at all.
func (m Measurements) Empty() bool {
	return m.Temperature == nil &&
		m.Humidity == nil &&
		m.Latitude == nil &&
		m.Longitude == nil &&
		m.Altitude == nil &&
		m.BatteryLevel == nil &&
		m.SignalStrength == nil
}

// SubmitPayload is one ingestion request from a field device.
//
// RecordedAt is the device's own clock, not the ingestion time; it may be
// skewed or arrive out of order and is stored as supplied.
type SubmitPayload struct {
	DeviceExternalID string
	ShipmentCode     string
	Measurements     Measurements
	RecordedAt       time.Time
}

// Reading is one persisted measurement submission. Rows are append-only:
// created exactly once at ingestion and never mutated.
type Reading struct {
	ID           string       `json:"id"`
	DeviceID     string       `json:"device_id"`
	ShipmentID   *string      `json:"shipment_id,omitempty"`
	Measurements Measurements `json:"measurements"`
	IsAlert      bool         `json:"is_alert"`
	AlertType    AlertType    `json:"alert_type,omitempty"`
	RecordedAt   time.Time    `json:"recorded_at"`
	CreatedAt    time.Time    `json:"created_at"`
}

// EnrichedReading is a reading joined with descriptive device and
// shipment fields for query consumers.
type EnrichedReading struct {
	Reading

	DeviceExternalID string `json:"device_external_id"`
	DeviceName       string `json:"device_name"`
	DeviceType       string `json:"device_type"`

	ShipmentCode   string             `json:"shipment_code,omitempty"`
	ShipmentStatus string             `json:"shipment_status,omitempty"`
	ShipmentBounds *shipment.Shipment `json:"shipment_bounds,omitempty"`
}

// IngestResult is returned to the submitting device.
type IngestResult struct {
	ReadingID      string `json:"reading_id"`
	AlertTriggered bool   `json:"alert_triggered"`
}

// Alert is a persisted record of a threshold violation.
type Alert struct {
	ID          string    `json:"id"`
	ShipmentID  string    `json:"shipment_id"`
	ReadingID   string    `json:"reading_id"`
	AlertType   AlertType `json:"alert_type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	ActualValue float64   `json:"actual_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats summarises one page of readings. The temperature aggregates are
// pointers so that "no temperature-bearing readings" reads as absent
// rather than a false 0°C.
type Stats struct {
	Count          int      `json:"count"`
	AlertCount     int      `json:"alert_count"`
	AvgTemperature *float64 `json:"avg_temperature,omitempty"`
	MinTemperature *float64 `json:"min_temperature,omitempty"`
	MaxTemperature *float64 `json:"max_temperature,omitempty"`
}

// Filter narrows a reading query. Zero values mean "no constraint";
// Limit falls back to the service default when unset.
type Filter struct {
	ShipmentCode     string
	DeviceExternalID string
	Limit            int
}

// QueryResult is the response shape for reading queries, live or demo.
type QueryResult struct {
	Readings []EnrichedReading `json:"readings"`
	Stats    Stats             `json:"stats"`
	IsDemo   bool              `json:"is_demo"`
	Notice   string            `json:"notice,omitempty"`
}
