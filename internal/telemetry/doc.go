// Package telemetry implements the cold-chain ingestion and alerting
// engine: the pipeline that receives environmental readings from field
// sensors, evaluates them against shipment safety thresholds, persists
// them append-only, raises alerts on violation, and serves aggregated
// views of the stored data.
//
// # Components
//
//   - Evaluate: pure threshold check of a reading against shipment bounds
//   - Pipeline: the ingestion orchestration (validate, resolve, evaluate,
//     persist, emit, heartbeat)
//   - Emitter: best-effort alert persistence with fixed severity policy
//   - QueryService: filtered history plus page statistics, degrading to a
//     synthetic demo series when the store is unreachable
//
// # Design Notes
//
// Readings are an append-only log: duplicate submissions from retrying
// field devices produce duplicate rows rather than corruption. The only
// mutual exclusion in the engine lives in the device registry's atomic
// insert-if-absent; everything here is free of cross-reading coordination
// and safe for arbitrary parallel callers.
package telemetry
