// Package sensormqtt bridges MQTT field gateways to the ingestion
// pipeline.
//
// Trucks in transit sit behind cellular links that drop constantly, so
// gateways buffer readings locally and publish them over MQTT when
// connectivity returns. The bridge consumes those submissions and runs
// them through the same pipeline as HTTP submissions; it also relays
// processed engine events back onto the bus for dashboard consumers.
package sensormqtt
