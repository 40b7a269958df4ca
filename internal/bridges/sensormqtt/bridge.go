package sensormqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/petalworks/coldchain-core/internal/infrastructure/mqtt"
	"github.com/petalworks/coldchain-core/internal/telemetry"
)

// subscribeQoS is the QoS for inbound telemetry. At-least-once fits the
// append-only reading log: a redelivered submission just adds a row.
const subscribeQoS = 1

// MQTTClient is the interface for MQTT operations.
// Satisfied by *mqtt.Client; mockable in tests.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Ingestor is the slice of the ingestion pipeline the bridge needs.
type Ingestor interface {
	Ingest(ctx context.Context, payload telemetry.SubmitPayload) (*telemetry.IngestResult, error)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bridge feeds MQTT sensor submissions into the ingestion pipeline.
//
// Field gateways publish one JSON document per reading to
// coldchain/telemetry/{device_external_id}; the bridge decodes each
// document and runs it through the same pipeline as HTTP submissions,
// so both transports share validation, evaluation, and persistence.
type Bridge struct {
	client   MQTTClient
	ingestor Ingestor
	logger   Logger
}

// New creates a sensor bridge. Call Start to begin consuming.
func New(client MQTTClient, ingestor Ingestor, logger Logger) *Bridge {
	return &Bridge{
		client:   client,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start subscribes to the telemetry topic tree.
//
// The context is captured for the lifetime of the subscription and
// bounds every ingestion triggered by an incoming message.
func (b *Bridge) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.AllDeviceTelemetry()

	err := b.client.Subscribe(topic, subscribeQoS, func(topic string, payload []byte) error {
		return b.handleSubmission(ctx, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to telemetry topics: %w", err)
	}

	b.logger.Info("sensor bridge started", "topic", topic)
	return nil
}

// Stop unsubscribes from the telemetry topic tree.
func (b *Bridge) Stop() error {
	if err := b.client.Unsubscribe(mqtt.Topics{}.AllDeviceTelemetry()); err != nil {
		return fmt.Errorf("unsubscribing from telemetry topics: %w", err)
	}
	b.logger.Info("sensor bridge stopped")
	return nil
}

// submissionMessage is the wire format for MQTT telemetry submissions.
// It mirrors the HTTP submit body; device_id is optional here because
// the topic already names the device.
type submissionMessage struct {
	DeviceID   string                 `json:"device_id,omitempty"`
	ShipmentID string                 `json:"shipment_id,omitempty"`
	Readings   telemetry.Measurements `json:"readings"`
	Timestamp  string                 `json:"timestamp"`
}

// handleSubmission decodes one MQTT message and ingests it.
//
// Returned errors are logged by the MQTT client wrapper; a malformed
// message is dropped rather than redelivered (the gateway owns retry).
func (b *Bridge) handleSubmission(ctx context.Context, topic string, payload []byte) error {
	externalID := deviceIDFromTopic(topic)

	var msg submissionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding submission on %s: %w", topic, err)
	}

	// The topic segment is authoritative; a body device_id only fills in
	// when the gateway publishes to an aggregate topic.
	if externalID == "" {
		externalID = msg.DeviceID
	}

	recordedAt, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: timestamp must be ISO-8601", telemetry.ErrInvalidPayload)
	}

	result, err := b.ingestor.Ingest(ctx, telemetry.SubmitPayload{
		DeviceExternalID: externalID,
		ShipmentCode:     msg.ShipmentID,
		Measurements:     msg.Readings,
		RecordedAt:       recordedAt,
	})
	if err != nil {
		return fmt.Errorf("ingesting submission from %s: %w", externalID, err)
	}

	b.logger.Debug("mqtt submission ingested",
		"device", externalID,
		"reading_id", result.ReadingID,
		"alert", result.AlertTriggered,
	)
	return nil
}

// deviceIDFromTopic extracts the device segment from a telemetry topic.
// Returns "" for aggregate or malformed topics.
func deviceIDFromTopic(topic string) string {
	prefix := mqtt.TopicPrefixTelemetry + "/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	id := strings.TrimPrefix(topic, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
