// Package influxdb provides InfluxDB connectivity for Cold Chain Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes, and health monitoring.
//
// # Purpose
//
// SQLite is the source of truth for readings; this package maintains an
// optional best-effort mirror in InfluxDB for long-range trend dashboards
// and retention beyond the relational pruning window. A mirror write
// failure never affects ingestion.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	pipeline.SetMirror(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors surface via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
