// Package mqtt provides MQTT broker connectivity for Hearth Core.
//
// This package manages:
//   - Single-attempt connections to the broker (Mosquitto or compatible)
//   - Message publishing with topic/QoS/size validation
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Hearth uses MQTT to talk to the devices it automates: sensors publish
// telemetry to status topics, and the engine publishes commands to actuator
// topics. The broker decouples the engine from device firmware.
//
//	Sensors → MQTT Broker → Hearth Core → MQTT Broker → Actuators
//
// Reconnection lives one layer up. Connect() makes exactly one attempt and a
// lost connection stays lost until the caller dials again; internal/bus runs
// the bounded retry cycle (delay and attempt cap from config) and re-subscribes
// the working set after each successful reconnect. Keeping the policy out of
// this package means every disconnect is observable to the layer that counts
// attempts.
//
// # Presence
//
// Each client announces itself on {topic_base}/status/{client_id}:
//   - retained "online" payload on every successful connect
//   - retained "offline" payload on graceful shutdown
//   - retained "offline" LWT published by the broker on unexpected death
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    // dial again later; the bus owns retry policy
//	}
//	defer client.Close()
//
//	err = client.Subscribe("home/livingroom/temperature/status", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	err = client.Publish("home/livingroom/ac/set", []byte(`{"mode":"cool"}`), 1, false)
package mqtt
