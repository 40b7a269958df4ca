// Package mqtt provides MQTT client connectivity for Cold Chain Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Field gateways aggregate sensor readings from trucks and publish them
// over MQTT; the broker decouples the engine from gateway connectivity
// (cellular links drop constantly in transit).
//
//	Field Gateways ↔ MQTT Broker ↔ Cold Chain Core
//
// The engine subscribes to coldchain/telemetry/+ for inbound submissions
// and publishes processed events and alerts under coldchain/core.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleSubmission(topic, payload)
//	    })
package mqtt
