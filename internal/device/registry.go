package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxExternalIDLength bounds hardware identifiers from untrusted field devices.
const maxExternalIDLength = 128

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache keyed by external ID.
//
// Registration is idempotent: the underlying repository's InsertIfAbsent
// guarantees a single device row per external ID no matter how many
// callers race on the first sighting.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by external ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ExternalID] = d.Clone()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// ResolveOrRegister returns the device for the given external ID,
// auto-registering it if unseen.
//
// The hint is used as the device type for a newly registered device;
// pass an empty string to default to temperature_humidity. Registration
// is safe under concurrent calls with the same external ID racing: the
// repository performs an atomic insert-if-absent, never check-then-insert.
//
// Returns ErrInvalidExternalID for empty or oversized identifiers and
// ErrRegistration (wrapped) when persistence fails.
func (r *Registry) ResolveOrRegister(ctx context.Context, externalID string, hint DeviceType) (*Device, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || len(externalID) > maxExternalIDLength {
		return nil, ErrInvalidExternalID
	}

	// Fast path: known device in cache.
	r.cacheMu.RLock()
	cached, ok := r.cache[externalID]
	r.cacheMu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	if hint == "" {
		hint = DeviceTypeTemperatureHumidity
	}

	candidate := &Device{
		ID:          GenerateID(),
		ExternalID:  externalID,
		Type:        hint,
		DisplayName: "Auto-registered: " + externalID,
		Active:      true,
	}

	// InsertIfAbsent returns the surviving row whether or not this call
	// created it, so duplicate network retries and concurrent first
	// readings all resolve to the same device.
	winner, err := r.repo.InsertIfAbsent(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	r.cacheMu.Lock()
	r.cache[externalID] = winner.Clone()
	r.cacheMu.Unlock()

	if winner.ID == candidate.ID {
		r.logger.Info("device auto-registered",
			"external_id", externalID,
			"id", winner.ID,
		)
	}

	return winner.Clone(), nil
}

// Touch updates the device heartbeat projection (last seen, battery).
//
// Heartbeat updates are best-effort: a failure is logged and swallowed
// so it can never fail an otherwise successful ingestion.
func (r *Registry) Touch(ctx context.Context, externalID string, hb Heartbeat) {
	if err := r.repo.UpdateHeartbeat(ctx, externalID, hb); err != nil {
		r.logger.Warn("device heartbeat update failed",
			"external_id", externalID,
			"error", err,
		)
		return
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[externalID]; ok {
		updated := cached.Clone()
		seen := hb.LastSeenAt.UTC()
		updated.LastSeenAt = &seen
		if hb.BatteryLevel != nil {
			b := *hb.BatteryLevel
			updated.BatteryLevel = &b
		}
		r.cache[externalID] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device heartbeat updated", "external_id", externalID)
}

// GetDevice retrieves a device by external ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, externalID string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[externalID]
	r.cacheMu.RUnlock()

	if ok {
		return cached.Clone(), nil
	}

	device, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[externalID] = device.Clone()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.Clone())
		}
		r.cacheMu.RUnlock()
		return devices, nil
	}
	r.cacheMu.RUnlock()

	return r.repo.List(ctx)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GenerateID generates a new unique device identifier.
func GenerateID() string {
	return uuid.New().String()
}
