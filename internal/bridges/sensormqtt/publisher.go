package sensormqtt

import (
	"encoding/json"

	"github.com/petalworks/coldchain-core/internal/infrastructure/mqtt"
)

// publishQoS is the QoS for outbound events. Fire-and-forget suits
// advisory notifications; consumers that need history query the API.
const publishQoS = 0

// EventPublisher relays engine events onto the MQTT bus.
//
// Satisfies telemetry.EventSink. Publication is best-effort: a broker
// outage drops events without affecting ingestion.
type EventPublisher struct {
	client MQTTClient
	logger Logger
}

// NewEventPublisher creates an MQTT-backed event publisher.
func NewEventPublisher(client MQTTClient, logger Logger) *EventPublisher {
	return &EventPublisher{
		client: client,
		logger: logger,
	}
}

// Broadcast publishes one engine event to coldchain/core/event/{type}.
func (p *EventPublisher) Broadcast(eventType string, payload any) {
	if !p.client.IsConnected() {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("event payload marshal failed", "type", eventType, "error", err)
		return
	}

	topic := mqtt.Topics{}.CoreEvent(eventType)
	if err := p.client.Publish(topic, body, publishQoS, false); err != nil {
		p.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
