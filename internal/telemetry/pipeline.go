package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petalworks/coldchain-core/internal/device"
	"github.com/petalworks/coldchain-core/internal/shipment"
)

// DeviceResolver is the slice of the device registry the pipeline needs.
type DeviceResolver interface {
	ResolveOrRegister(ctx context.Context, externalID string, hint device.DeviceType) (*device.Device, error)
	Touch(ctx context.Context, externalID string, hb device.Heartbeat)
}

// ReadingMirror receives a copy of every stored reading for secondary
// storage (e.g. a time-series database). Implementations must not block:
// mirroring is fire-and-forget from the pipeline's perspective.
type ReadingMirror interface {
	WriteReading(reading *Reading, deviceExternalID, shipmentCode string)
}

// EventSink receives ingestion events for live consumers (e.g. a
// WebSocket hub). Implementations must not block.
type EventSink interface {
	Broadcast(eventType string, payload any)
}

// Event types published to the EventSink.
const (
	EventReadingStored = "reading.stored"
	EventAlertRaised   = "alert.raised"
)

// Pipeline orchestrates one ingestion call: validate, resolve device,
// resolve shipment, evaluate thresholds, persist, emit alert, heartbeat.
//
// The pipeline is stateless and safe for concurrent use; calls for
// different devices never serialize against each other.
type Pipeline struct {
	devices   DeviceResolver
	shipments shipment.Repository
	readings  ReadingRepository
	emitter   *Emitter
	mirror    ReadingMirror
	events    EventSink
	logger    Logger
	timeout   time.Duration
}

// NewPipeline creates an ingestion pipeline. The timeout bounds every
// external call made during a single ingestion; zero disables the bound.
func NewPipeline(devices DeviceResolver, shipments shipment.Repository, readings ReadingRepository, emitter *Emitter, timeout time.Duration) *Pipeline {
	return &Pipeline{
		devices:   devices,
		shipments: shipments,
		readings:  readings,
		emitter:   emitter,
		logger:    noopLogger{},
		timeout:   timeout,
	}
}

// SetLogger sets the logger for the pipeline.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// SetMirror attaches a secondary reading store. Optional.
func (p *Pipeline) SetMirror(mirror ReadingMirror) {
	p.mirror = mirror
}

// SetEventSink attaches a live event consumer. Optional.
func (p *Pipeline) SetEventSink(events EventSink) {
	p.events = events
}

// Ingest processes one submission from a field device.
//
// Failure semantics: validation failures surface ErrInvalidPayload,
// device registration failures surface device.ErrRegistration, and
// reading persistence failures surface ErrStorage. Alert emission and
// the heartbeat update are best-effort; their failure never fails an
// ingestion whose reading was already written.
func (p *Pipeline) Ingest(ctx context.Context, payload SubmitPayload) (*IngestResult, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	dev, err := p.devices.ResolveOrRegister(ctx, payload.DeviceExternalID, deviceTypeHint(payload.Measurements))
	if err != nil {
		return nil, err
	}

	// Shipment absence is normal; readings may arrive before an
	// association exists. Any other lookup failure means the store is
	// unhealthy, so fail fast and let the device retry.
	var shp *shipment.Shipment
	if code := strings.TrimSpace(payload.ShipmentCode); code != "" {
		shp, err = p.shipments.GetByCode(ctx, code)
		if err != nil {
			if !errors.Is(err, shipment.ErrShipmentNotFound) {
				return nil, fmt.Errorf("%w: resolving shipment %q: %w", ErrStorage, code, err)
			}
			shp = nil
		}
	}

	violation := Evaluate(payload.Measurements, shp)

	reading := &Reading{
		ID:           uuid.New().String(),
		DeviceID:     dev.ID,
		Measurements: payload.Measurements,
		IsAlert:      violation != nil,
		RecordedAt:   payload.RecordedAt.UTC(),
	}
	if shp != nil {
		id := shp.ID
		reading.ShipmentID = &id
	}
	if violation != nil {
		reading.AlertType = violation.Type
	}

	if err := p.readings.Insert(ctx, reading); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// From here on the reading exists; nothing below may fail the call.
	alertTriggered := false
	if violation != nil {
		alert, emitErr := p.emitter.Emit(ctx, reading, shp, violation)
		if emitErr != nil {
			p.logger.Error("alert emission failed",
				"reading_id", reading.ID,
				"shipment_code", shp.Code,
				"error", emitErr,
			)
		} else {
			alertTriggered = true
			if p.events != nil {
				p.events.Broadcast(EventAlertRaised, alert)
			}
		}
	}

	p.devices.Touch(ctx, dev.ExternalID, device.Heartbeat{
		LastSeenAt:   time.Now().UTC(),
		BatteryLevel: payload.Measurements.BatteryLevel,
	})

	if p.mirror != nil {
		p.mirror.WriteReading(reading, dev.ExternalID, strings.TrimSpace(payload.ShipmentCode))
	}
	if p.events != nil {
		p.events.Broadcast(EventReadingStored, reading)
	}

	p.logger.Debug("reading ingested",
		"reading_id", reading.ID,
		"device", dev.ExternalID,
		"alert", alertTriggered,
	)

	return &IngestResult{
		ReadingID:      reading.ID,
		AlertTriggered: alertTriggered,
	}, nil
}

// validatePayload enforces the minimum envelope: a device identifier, at
// least one measurement channel, and a device-supplied timestamp.
func validatePayload(payload SubmitPayload) error {
	if strings.TrimSpace(payload.DeviceExternalID) == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidPayload)
	}
	if payload.Measurements.Empty() {
		return fmt.Errorf("%w: readings must contain at least one measurement", ErrInvalidPayload)
	}
	if payload.RecordedAt.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidPayload)
	}
	return nil
}

// deviceTypeHint picks a registration hint from the channels present.
func deviceTypeHint(m Measurements) device.DeviceType {
	switch {
	case m.Temperature != nil && m.Humidity != nil:
		return device.DeviceTypeTemperatureHumidity
	case m.Temperature != nil:
		return device.DeviceTypeTemperature
	case m.Humidity != nil:
		return device.DeviceTypeHumidity
	case m.Latitude != nil || m.Longitude != nil:
		return device.DeviceTypeGPSTracker
	default:
		return device.DeviceTypeMultiSensor
	}
}
