package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hearthd/hearth-core/internal/bus"
	"github.com/hearthd/hearth-core/internal/infrastructure/config"
	"github.com/hearthd/hearth-core/internal/state"
)

func newTestHub() *Hub {
	return NewHub(config.WebSocketConfig{
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}, testLogger())
}

// newTestClient builds a client without a network connection, subscribed
// to the given channels. Broadcast only touches the send channel, so no
// pumps are needed.
func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

// receiveMessage pops one message off the client's send buffer.
func receiveMessage(t *testing.T, client *WSClient) WSMessage {
	t.Helper()

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		return msg
	default:
		t.Fatal("no message in send buffer")
		return WSMessage{}
	}
}

// ─── Broadcast Tests ───────────────────────────────────────────────

func TestHubBroadcast_OnlySubscribedClients(t *testing.T) {
	hub := newTestHub()

	subscribed := newTestClient(hub, ChannelDeviceState)
	other := newTestClient(hub, ChannelCommandExecuted)
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast(ChannelDeviceState, map[string]any{"device_id": "sensor_lr"})

	if len(subscribed.send) != 1 {
		t.Errorf("subscribed client has %d messages, want 1", len(subscribed.send))
	}
	if len(other.send) != 0 {
		t.Errorf("unsubscribed client has %d messages, want 0", len(other.send))
	}
}

func TestHubBroadcast_MessageShape(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, ChannelDeviceState)
	hub.Register(client)

	hub.Broadcast(ChannelDeviceState, map[string]any{"device_id": "sensor_lr"})

	msg := receiveMessage(t, client)
	if msg.Type != WSTypeEvent {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
	}
	if msg.EventType != ChannelDeviceState {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelDeviceState)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp should be set")
	}

	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload is %T, want map", msg.Payload)
	}
	if payload["device_id"] != "sensor_lr" {
		t.Errorf("payload device_id = %v, want sensor_lr", payload["device_id"])
	}
}

// ─── Event Sink Tests ──────────────────────────────────────────────

func TestHubDeviceStateChanged(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, ChannelDeviceState)
	hub.Register(client)

	applied := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	hub.DeviceStateChanged(state.Update{
		DeviceID: "sensor_lr",
		Entry: state.Entry{
			Timestamp: applied,
			State:     map[string]any{"temp": 30.5},
		},
	})

	msg := receiveMessage(t, client)
	if msg.EventType != ChannelDeviceState {
		t.Fatalf("event_type = %q, want %q", msg.EventType, ChannelDeviceState)
	}

	payload := msg.Payload.(map[string]any)
	if payload["device_id"] != "sensor_lr" {
		t.Errorf("device_id = %v, want sensor_lr", payload["device_id"])
	}
	if payload["timestamp"] != "2026-08-20T12:00:00Z" {
		t.Errorf("timestamp = %v, want 2026-08-20T12:00:00Z", payload["timestamp"])
	}
	stateMap, ok := payload["state"].(map[string]any)
	if !ok || stateMap["temp"] != 30.5 {
		t.Errorf("state = %v, want temp 30.5", payload["state"])
	}
}

func TestHubCommandExecuted(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, ChannelCommandExecuted)
	hub.Register(client)

	hub.CommandExecuted(bus.CommandRecord{
		Timestamp: time.Now().UTC(),
		Topic:     "/h/dev/ac_lr/set",
		Payload:   map[string]any{"mode": "cool"},
		Source:    bus.SourceRuleEngine,
		Success:   true,
	})

	msg := receiveMessage(t, client)
	if msg.EventType != ChannelCommandExecuted {
		t.Fatalf("event_type = %q, want %q", msg.EventType, ChannelCommandExecuted)
	}

	payload := msg.Payload.(map[string]any)
	if payload["topic"] != "/h/dev/ac_lr/set" {
		t.Errorf("topic = %v, want /h/dev/ac_lr/set", payload["topic"])
	}
	if payload["source"] != string(bus.SourceRuleEngine) {
		t.Errorf("source = %v, want %q", payload["source"], bus.SourceRuleEngine)
	}
	if payload["success"] != true {
		t.Errorf("success = %v, want true", payload["success"])
	}
}

// ─── Registration Tests ────────────────────────────────────────────

func TestHubClientCount(t *testing.T) {
	hub := newTestHub()
	if hub.ClientCount() != 0 {
		t.Fatalf("empty hub count = %d, want 0", hub.ClientCount())
	}

	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.Register(a)
	hub.Register(b)
	if hub.ClientCount() != 2 {
		t.Errorf("count = %d, want 2", hub.ClientCount())
	}

	hub.Unregister(a)
	if hub.ClientCount() != 1 {
		t.Errorf("count after unregister = %d, want 1", hub.ClientCount())
	}
}

func TestHubUnregister_Idempotent(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub)
	hub.Register(client)

	hub.Unregister(client)
	// A second unregister must not close the send channel twice.
	hub.Unregister(client)
}

// ─── Client Message Tests ──────────────────────────────────────────

func TestClientSubscribe(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub)
	hub.Register(client)

	client.handleMessage([]byte(`{
		"type": "subscribe",
		"id": "req-1",
		"payload": {"channels": ["device.state_changed"]}
	}`))

	if !client.isSubscribed(ChannelDeviceState) {
		t.Error("client should be subscribed after subscribe message")
	}

	msg := receiveMessage(t, client)
	if msg.Type != WSTypeResponse {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeResponse)
	}
	if msg.ID != "req-1" {
		t.Errorf("id = %q, want req-1", msg.ID)
	}
}

func TestClientUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, ChannelDeviceState)
	hub.Register(client)

	client.handleMessage([]byte(`{
		"type": "unsubscribe",
		"payload": {"channels": ["device.state_changed"]}
	}`))

	if client.isSubscribed(ChannelDeviceState) {
		t.Error("client should not be subscribed after unsubscribe message")
	}
}

func TestClientPing(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub)
	hub.Register(client)

	client.handleMessage([]byte(`{"type": "ping", "id": "p-1"}`))

	msg := receiveMessage(t, client)
	if msg.Type != WSTypePong {
		t.Errorf("type = %q, want %q", msg.Type, WSTypePong)
	}
	if msg.ID != "p-1" {
		t.Errorf("id = %q, want p-1", msg.ID)
	}
}

func TestClientUnknownMessageType(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub)
	hub.Register(client)

	client.handleMessage([]byte(`{"type": "teleport"}`))

	msg := receiveMessage(t, client)
	if msg.Type != WSTypeError {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeError)
	}
}

func TestClientInvalidJSON(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub)
	hub.Register(client)

	client.handleMessage([]byte(`{nope`))

	msg := receiveMessage(t, client)
	if msg.Type != WSTypeError {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeError)
	}
}

// ─── trySend Tests ─────────────────────────────────────────────────

func TestTrySend_FullBufferDoesNotBlock(t *testing.T) {
	client := &WSClient{
		send:          make(chan []byte, 1),
		subscriptions: make(map[string]struct{}),
	}

	client.trySend([]byte("one"))
	// Buffer is full now; this must drop instead of blocking.
	done := make(chan struct{})
	go func() {
		client.trySend([]byte("two"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("trySend blocked on a full buffer")
	}
}

func TestTrySend_ClosedChannel(t *testing.T) {
	client := &WSClient{
		send:          make(chan []byte, 1),
		subscriptions: make(map[string]struct{}),
	}
	close(client.send)

	// Must absorb the send-on-closed-channel panic.
	client.trySend([]byte("late"))
}
