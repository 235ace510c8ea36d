// Package bus bridges the MQTT broker and the in-process engine components.
//
// It owns the long-lived broker connection, feeds inbound telemetry to the
// state cache and rule evaluator, publishes outbound commands, and keeps a
// bounded history of every publish attempt.
//
// # Architecture
//
//	                   ┌──────────────────────────────────────────┐
//	                   │                bus.Client                 │
//	                   │                                          │
//	 MQTT broker ◄─────┤  connect cycle (bounded retry)           │
//	      │            │  subscription reconcile (delta only)     │
//	      │ telemetry  │  command history ring                    │
//	      ▼            └───────┬──────────────────┬───────────────┘
//	 handleMessage             │                  │
//	      │                    ▼                  ▼
//	      │            StateCache.Apply    RuleEvaluator.Process
//	      │                    │                  │
//	      │                    ▼                  │ device_command /
//	      │            EventSink (WS hub)         │ mqtt_publish
//	      │                                       ▼
//	      └────────────────◄── Publish ◄── action handler
//
// Inbound messages follow a fixed order on the dispatch goroutine: decode →
// StateCache.Apply → RuleEvaluator.Process. A rule firing therefore observes
// its own trigger value already cached. Outbound publishes — rule actions
// and API commands alike — go through Publish, which appends a CommandRecord
// on every attempt.
//
// # Connection lifecycle
//
//	disconnected ──Start()──► connecting ──dial ok──► connected
//	      ▲                       │ ▲                     │
//	      │  attempts exhausted   │ │                     │
//	      └───────────────────────┘ └────connection lost──┘
//
// A lost connection begins a bounded reconnect cycle (engine.reconnect_delay
// between attempts, engine.max_reconnect_attempts per cycle). While
// disconnected, Publish returns ErrNotConnected and history records the
// failed attempts. After exhaustion the bus stays down until Start() is
// called again.
//
// Subscriptions use a clean session: the set is rebuilt from
// DeviceRegistry.StatusTopics() ∪ RuleEvaluator.TriggerTopics() after every
// connect, and ReconcileSubscriptions() adds newly needed topics when rules
// change. Topics are never unsubscribed mid-session.
package bus
