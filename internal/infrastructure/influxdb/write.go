package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/petalworks/coldchain-core/internal/telemetry"
)

// WriteReading mirrors one stored reading into the time-series bucket.
//
// Satisfies telemetry.ReadingMirror. The write is non-blocking: data is
// batched and sent asynchronously, so a slow or unreachable InfluxDB
// never stalls the ingestion pipeline. Points are timestamped with the
// device-supplied recording time, not the ingestion time.
//
// Parameters:
//   - reading: The persisted reading
//   - deviceExternalID: The device's stable hardware identifier (tag)
//   - shipmentCode: The shipment code, empty for shipment-less readings (tag)
func (c *Client) WriteReading(reading *telemetry.Reading, deviceExternalID, shipmentCode string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceExternalID,
	}
	if shipmentCode != "" {
		tags["shipment_code"] = shipmentCode
	}
	if reading.AlertType != "" {
		tags["alert_type"] = string(reading.AlertType)
	}

	fields := readingFields(reading)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint("readings", tags, fields, reading.RecordedAt)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the reading mirror, such as
// engine statistics.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// readingFields flattens the sparse measurement channels into InfluxDB
// fields, skipping absent channels.
func readingFields(reading *telemetry.Reading) map[string]interface{} {
	fields := make(map[string]interface{})

	m := reading.Measurements
	if m.Temperature != nil {
		fields["temperature"] = *m.Temperature
	}
	if m.Humidity != nil {
		fields["humidity"] = *m.Humidity
	}
	if m.Latitude != nil {
		fields["latitude"] = *m.Latitude
	}
	if m.Longitude != nil {
		fields["longitude"] = *m.Longitude
	}
	if m.Altitude != nil {
		fields["altitude"] = *m.Altitude
	}
	if m.BatteryLevel != nil {
		fields["battery_level"] = *m.BatteryLevel
	}
	if m.SignalStrength != nil {
		fields["signal_strength"] = *m.SignalStrength
	}

	if reading.IsAlert {
		fields["is_alert"] = true
	}

	return fields
}
