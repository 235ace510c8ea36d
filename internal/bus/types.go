package bus

import (
	"time"

	"github.com/hearthd/hearth-core/internal/state"
)

// State describes the broker connection lifecycle.
type State string

// Connection states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Source identifies what initiated an outbound command.
type Source string

// Command sources.
const (
	// SourceRuleEngine marks commands published by automation rule firings.
	SourceRuleEngine Source = "rule_engine"

	// SourceAPI marks commands published on behalf of an HTTP request.
	SourceAPI Source = "api"
)

// CommandRecord captures one outbound publish attempt.
//
// A record is appended to the history ring on every attempt, successful or
// not, so the history reads as a faithful audit of what the engine tried to
// do — not just what the broker acknowledged.
type CommandRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Source    Source    `json:"source"`
	Success   bool      `json:"success"`

	// MessageID is the broker packet identifier, when one was assigned
	// (QoS > 0 publishes that reached the broker).
	MessageID uint16 `json:"message_id,omitempty"`
}

// Status is a point-in-time snapshot of the bus for monitoring endpoints.
type Status struct {
	Running          bool     `json:"running"`
	State            State    `json:"state"`
	Connected        bool     `json:"connected"`
	ClientID         string   `json:"client_id,omitempty"`
	SubscribedTopics []string `json:"subscribed_topics"`
	HistoryCount     int      `json:"command_history_count"`
}

// EventSink receives engine events for fan-out to interested listeners.
// Production wires the WebSocket hub here; the default sink discards.
//
// Sink methods run on the broker dispatch goroutine and must not block.
type EventSink interface {
	DeviceStateChanged(update state.Update)
	CommandExecuted(record CommandRecord)
}

// noopEventSink discards all events.
type noopEventSink struct{}

func (noopEventSink) DeviceStateChanged(state.Update) {}
func (noopEventSink) CommandExecuted(CommandRecord)   {}
