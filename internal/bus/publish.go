package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hearthd/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthd/hearth-core/internal/rules"
)

// defaultCommandQoS is the QoS level for outbound command publishes.
const defaultCommandQoS = 1

// Publish serializes the payload as JSON and sends it to the broker.
//
// Every attempt — including serialization failures and publishes while
// disconnected — appends a CommandRecord to the history ring and notifies
// the event sink, so the history is a complete account of what the engine
// tried to send.
//
// Parameters:
//   - topic: Destination topic (absolute, from a device definition or rule action)
//   - payload: Object-form payload; serialized with encoding/json
//   - qos: Quality of Service level (commands use 1)
//   - retain: Broker retention flag (commands use false)
//   - source: What initiated the command (rule_engine or api)
//
// Returns:
//   - error: nil on broker ack; ErrNotConnected while disconnected; a
//     wrapped error for serialization or broker failures
func (c *Client) Publish(topic string, payload any, qos byte, retain bool, source Source) error {
	record := CommandRecord{
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Payload:   payload,
		Source:    source,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.recordCommand(record)
		return fmt.Errorf("bus: encoding payload: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	st := c.state
	c.mu.Unlock()

	if conn == nil || st != StateConnected {
		c.recordCommand(record)
		return ErrNotConnected
	}

	messageID, err := conn.PublishTracked(topic, data, qos, retain)
	if err != nil {
		c.recordCommand(record)
		if errors.Is(err, mqtt.ErrNotConnected) {
			// Lost the connection between the state check and the send.
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return fmt.Errorf("bus: publish: %w", err)
	}

	record.Success = true
	record.MessageID = messageID
	c.recordCommand(record)

	c.logger.Info("command published",
		"topic", topic,
		"source", source,
		"message_id", messageID,
	)
	return nil
}

// History returns a snapshot of the command ring in insertion order.
func (c *Client) History() []CommandRecord {
	return c.history.snapshot()
}

// recordCommand appends to the ring and notifies the event sink.
func (c *Client) recordCommand(record CommandRecord) {
	c.history.append(record)
	c.eventSink().CommandExecuted(record)
}

// publishRuleAction is the evaluator's action handler: rule firings publish
// like any other command, attributed to the rule engine.
func (c *Client) publishRuleAction(action rules.ResolvedAction) {
	if err := c.Publish(action.Topic, action.Payload, defaultCommandQoS, false, SourceRuleEngine); err != nil {
		c.logger.Error("rule action publish failed",
			"topic", action.Topic,
			"error", err,
		)
	}
}
