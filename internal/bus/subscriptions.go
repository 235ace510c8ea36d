package bus

import (
	"encoding/json"
	"sort"
	"unicode/utf8"
)

// subscribeQoS is the QoS level for telemetry subscriptions.
const subscribeQoS = 1

// ReconcileSubscriptions subscribes to every topic the device registry and
// rule evaluator currently need but the connection does not yet have.
//
// It never unsubscribes: a topic that stops being needed keeps delivering
// until the next reconnect rebuilds the set from scratch, which is harmless
// because unmatched messages fall out of the dispatch path anyway. Called
// after every connect and from the rule-store change hook, so a newly added
// rule is live before the mutating HTTP request returns.
//
// Returns the first subscribe error, if any; remaining topics are still
// attempted.
func (c *Client) ReconcileSubscriptions() error {
	c.mu.Lock()
	conn := c.conn
	st := c.state
	c.mu.Unlock()

	if conn == nil || st != StateConnected {
		c.logger.Debug("not connected, subscriptions reconcile deferred to next connect")
		return nil
	}

	var firstErr error
	added := 0
	for _, topic := range c.neededTopics() {
		if conn.HasSubscription(topic) {
			continue
		}
		if err := conn.Subscribe(topic, subscribeQoS, c.handleMessage); err != nil {
			c.logger.Error("subscribe failed", "topic", topic, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		added++
	}

	if added > 0 {
		c.logger.Info("subscriptions reconciled",
			"added", added,
			"total", conn.SubscriptionCount(),
		)
	}
	return firstErr
}

// neededTopics returns the union of sensor status topics and rule trigger
// topics, deduplicated and sorted for deterministic subscribe order.
func (c *Client) neededTopics() []string {
	seen := make(map[string]struct{})
	for _, topic := range c.devices.StatusTopics() {
		seen[topic] = struct{}{}
	}
	for _, topic := range c.evaluator.TriggerTopics() {
		seen[topic] = struct{}{}
	}

	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// handleMessage is the dispatch path for every subscribed topic: decode,
// update the state cache, then evaluate rules — in that order, so a firing
// rule observes its own trigger value already cached.
//
// Malformed payloads (invalid UTF-8, non-object JSON) are logged and
// dropped without touching state or rules.
func (c *Client) handleMessage(topic string, payload []byte) error {
	if !utf8.Valid(payload) {
		c.logger.Warn("dropping message with invalid UTF-8 payload", "topic", topic)
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		c.logger.Warn("dropping unparseable message", "topic", topic, "error", err)
		return nil
	}
	if obj == nil {
		// JSON "null" parses cleanly into a nil map; treat it like garbage.
		c.logger.Warn("dropping null message", "topic", topic)
		return nil
	}

	if update, ok := c.states.Apply(topic, obj); ok {
		c.eventSink().DeviceStateChanged(update)
	}

	c.evaluator.Process(topic, obj)
	return nil
}
