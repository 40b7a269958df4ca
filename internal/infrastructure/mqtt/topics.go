package mqtt

import "fmt"

// Topic prefixes for the Cold Chain MQTT namespace.
//
// Field gateways publish sensor submissions under coldchain/telemetry;
// the engine publishes processed events under coldchain/core and its own
// availability under coldchain/system.
const (
	// TopicPrefixTelemetry is the base for inbound sensor submissions.
	TopicPrefixTelemetry = "coldchain/telemetry"

	// TopicPrefixCore is the base for engine-published events.
	TopicPrefixCore = "coldchain/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "coldchain/system"
)

// Topics provides builders for Cold Chain MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceTelemetry("TRUCK-7-FRONT")
//	// Returns: "coldchain/telemetry/TRUCK-7-FRONT"
type Topics struct{}

// DeviceTelemetry returns the submission topic for one device.
//
// Example: coldchain/telemetry/TRUCK-7-FRONT
func (Topics) DeviceTelemetry(externalID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixTelemetry, externalID)
}

// AllDeviceTelemetry returns a pattern matching every device's submissions.
//
// Pattern: coldchain/telemetry/+
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/+", TopicPrefixTelemetry)
}

// CoreEvent returns the topic for processed engine events.
//
// Example: coldchain/core/event/reading.stored
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// CoreAlert returns the topic for raised threshold alerts on a shipment.
//
// Example: coldchain/core/alert/SHP-1042
func (Topics) CoreAlert(shipmentCode string) string {
	return fmt.Sprintf("%s/alert/%s", TopicPrefixCore, shipmentCode)
}

// AllCoreAlerts returns a pattern matching every alert topic.
//
// Pattern: coldchain/core/alert/+
func (Topics) AllCoreAlerts() string {
	return fmt.Sprintf("%s/alert/+", TopicPrefixCore)
}

// SystemStatus returns the engine availability topic.
//
// Example: coldchain/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
