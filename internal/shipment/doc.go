// Package shipment provides the shipment threshold store for Cold Chain Core.
//
// A shipment carries the safety envelope (temperature and humidity bounds)
// that the telemetry engine evaluates readings against. From this engine's
// perspective the store is read-only: shipments are created and managed by
// upstream order systems, and the ingestion path only looks them up by code.
package shipment
