package bus

import (
	"context"
	"sync"
	"time"

	"github.com/hearthd/hearth-core/internal/infrastructure/config"
	"github.com/hearthd/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthd/hearth-core/internal/rules"
	"github.com/hearthd/hearth-core/internal/state"
)

// DeviceRegistry provides the sensor topics that need broker subscriptions.
type DeviceRegistry interface {
	StatusTopics() []string
}

// RuleEvaluator is the rule dispatch surface the bus drives.
type RuleEvaluator interface {
	TriggerTopics() []string
	Process(topic string, payload map[string]any)
	SetActionHandler(fn rules.ActionHandler)
}

// StateApplier ingests telemetry into the device state cache.
type StateApplier interface {
	Apply(topic string, payload map[string]any) (state.Update, bool)
}

// Connection is the broker client surface the bus drives. Satisfied by
// *mqtt.Client; tests substitute a fake.
type Connection interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishTracked(topic string, payload []byte, qos byte, retained bool) (uint16, error)
	HasSubscription(topic string) bool
	SubscriptionCount() int
	SubscribedTopics() []string
	IsConnected() bool
	ClientID() string
	SetOnDisconnect(callback func(err error))
	SetLogger(logger mqtt.Logger)
	Close() error
}

// Dialer opens one broker connection attempt.
type Dialer func() (Connection, error)

// Logger abstracts logging for the bus.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// defaultMaxReconnectAttempts bounds one reconnect cycle when config leaves
// the limit unset.
const defaultMaxReconnectAttempts = 5

// Client is the long-lived bridge between the MQTT broker and the in-process
// engine components.
//
// Inbound, it subscribes to every topic the device registry and rule
// evaluator need, decodes telemetry, feeds the state cache and then the rule
// evaluator — in that order, on the dispatch goroutine. Outbound, it
// serializes command payloads, publishes them, and appends a CommandRecord
// to the history ring for every attempt.
//
// Connection lifecycle is a small state machine (disconnected → connecting →
// connected). A lost connection starts a bounded reconnect cycle: up to
// MaxReconnectAttempts dials, ReconnectDelay apart. When the cycle exhausts
// its attempts the bus stays disconnected, Publish returns ErrNotConnected,
// and a later Start() call begins a fresh cycle.
type Client struct {
	mqttCfg   config.MQTTConfig
	engineCfg config.EngineConfig

	devices   DeviceRegistry
	evaluator RuleEvaluator
	states    StateApplier

	// dial opens broker connections; replaced in tests.
	dial Dialer

	// mu guards the connection state machine below.
	mu          sync.Mutex
	conn        Connection
	state       State
	running     bool
	cycleActive bool
	runCtx      context.Context
	runCancel   context.CancelFunc

	wg sync.WaitGroup

	history *historyRing

	sinkMu sync.RWMutex
	sink   EventSink

	logger Logger
}

// New creates a bus client wired to the given components.
//
// The evaluator's action handler is installed here: rule firings publish
// through the same path as API commands and land in the same history ring.
// Call Start() to begin connecting.
func New(mqttCfg config.MQTTConfig, engineCfg config.EngineConfig, devices DeviceRegistry, evaluator RuleEvaluator, states StateApplier) *Client {
	c := &Client{
		mqttCfg:   mqttCfg,
		engineCfg: engineCfg,
		devices:   devices,
		evaluator: evaluator,
		states:    states,
		state:     StateDisconnected,
		history:   newHistoryRing(engineCfg.CommandHistorySize),
		sink:      noopEventSink{},
		logger:    noopLogger{},
	}

	c.dial = func() (Connection, error) {
		conn, err := mqtt.Connect(mqttCfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	evaluator.SetActionHandler(c.publishRuleAction)

	return c
}

// SetLogger attaches a logger. Call before Start.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetEventSink attaches an event listener (the WebSocket hub in production).
// Call before Start.
func (c *Client) SetEventSink(sink EventSink) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if sink == nil {
		c.sink = noopEventSink{}
		return
	}
	c.sink = sink
}

func (c *Client) eventSink() EventSink {
	c.sinkMu.RLock()
	defer c.sinkMu.RUnlock()
	return c.sink
}

// Start begins connecting to the broker in the background.
//
// The connection outcome is asynchronous: the engine serves HTTP immediately
// and Publish returns ErrNotConnected until a dial succeeds. Calling Start
// on a bus whose reconnect cycle has exhausted its attempts begins a fresh
// cycle; calling it while connected or already connecting is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if !c.running {
		c.running = true
		c.runCtx, c.runCancel = context.WithCancel(context.Background())
	}
	c.mu.Unlock()

	c.spawnReconnect()
}

// Stop cancels any reconnect cycle, waits for it to exit, and closes the
// broker connection. It returns only after background work has finished.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.runCancel
	c.runCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Warn("broker close failed", "error", err)
		}
	}

	c.logger.Info("bus stopped")
}

// spawnReconnect starts a connect cycle unless one is already active or the
// bus is connected or stopped.
func (c *Client) spawnReconnect() {
	c.mu.Lock()
	if !c.running || c.cycleActive || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.cycleActive = true
	c.state = StateConnecting
	ctx := c.runCtx
	c.wg.Add(1)
	c.mu.Unlock()

	go c.connectCycle(ctx)
}

// connectCycle dials the broker up to the configured attempt limit, waiting
// the configured delay between attempts. It exits on success, exhaustion, or
// cancellation.
func (c *Client) connectCycle(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.cycleActive = false
		c.mu.Unlock()
	}()

	maxAttempts := c.engineCfg.MaxReconnectAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxReconnectAttempts
	}
	delay := c.engineCfg.ReconnectDelayDuration()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial()
		if err == nil {
			c.adopt(conn)
			return
		}

		c.logger.Warn("broker connection attempt failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	c.logger.Error("broker reconnect attempts exhausted, staying disconnected",
		"attempts", maxAttempts,
	)
}

// adopt installs a freshly dialed connection and brings subscriptions in
// line with what the registry and evaluator currently need.
func (c *Client) adopt(conn Connection) {
	conn.SetLogger(c.logger)
	conn.SetOnDisconnect(c.handleConnectionLost)

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("broker connected", "client_id", conn.ClientID())

	if err := c.ReconcileSubscriptions(); err != nil {
		c.logger.Error("initial subscription reconcile incomplete", "error", err)
	}
}

// handleConnectionLost reacts to an unexpected broker disconnect by dropping
// the dead connection and starting a reconnect cycle.
//
// Runs on the paho callback goroutine; must not block.
func (c *Client) handleConnectionLost(err error) {
	c.mu.Lock()
	c.conn = nil
	c.state = StateDisconnected
	running := c.running
	c.mu.Unlock()

	c.logger.Warn("broker connection lost", "error", err)

	if running {
		c.spawnReconnect()
	}
}

// IsConnected reports whether the bus currently holds a live broker connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	conn := c.conn
	st := c.state
	c.mu.Unlock()

	return st == StateConnected && conn != nil && conn.IsConnected()
}

// Status returns a snapshot of the connection state machine, subscription
// set, and history size for monitoring endpoints.
func (c *Client) Status() Status {
	c.mu.Lock()
	conn := c.conn
	st := c.state
	running := c.running
	c.mu.Unlock()

	s := Status{
		Running:          running,
		State:            st,
		SubscribedTopics: []string{},
		HistoryCount:     c.history.size(),
	}
	if conn != nil {
		s.Connected = st == StateConnected && conn.IsConnected()
		s.ClientID = conn.ClientID()
		s.SubscribedTopics = conn.SubscribedTopics()
	}
	return s
}
