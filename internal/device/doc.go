// Package device provides the Device Registry for Cold Chain Core.
//
// The Device Registry is the catalogue of field sensors that submit
// environmental readings. Unlike an administratively-curated inventory,
// most devices enter the registry implicitly: the first reading from an
// unknown hardware identifier auto-registers the device.
//
// # Key Types
//
//   - Device: A field sensor identified by a stable external ID
//   - Heartbeat: The per-reading health projection (last seen, battery)
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Resolve a device during ingestion (registers it if unseen)
//	dev, err := registry.ResolveOrRegister(ctx, "SENSOR-0042", "")
//
//	// Best-effort heartbeat after a successful ingestion
//	registry.Touch(ctx, dev.ExternalID, device.Heartbeat{LastSeenAt: now})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Auto-registration relies on an
// atomic insert-if-absent against the external_id uniqueness constraint,
// so concurrent first-sightings of the same sensor never produce duplicate
// device rows. This is the only point of mutual exclusion in the engine,
// and it is scoped to the device's unique key rather than a global lock.
package device
