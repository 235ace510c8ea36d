package rules

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/hearthd/hearth-core/internal/device"
)

// DeviceResolver is the slice of the device registry the evaluator
// needs: payload-format lookup for trigger topics and command
// resolution for device_command actions.
type DeviceResolver interface {
	FindByStatusTopic(topic string) (*device.Device, bool)
	ResolveCommand(deviceID, command string, params map[string]any) (string, any, error)
}

// RuleSource supplies the enabled rules for a snapshot.
type RuleSource interface {
	Enabled() []Rule
}

// ResolvedAction is an outbound publish emitted by a fired rule.
type ResolvedAction struct {
	Topic   string
	Payload any
}

// ActionHandler receives resolved actions. The bus client injects one
// at wiring time; it publishes with source "rule_engine".
type ActionHandler func(action ResolvedAction)

// Evaluator matches incoming bus messages against the enabled rule set
// and emits resolved actions.
//
// The enabled rules live in an immutable snapshot replaced wholesale on
// Reload and read without a lock, so evaluation on the bus dispatch
// path never contends with API-driven rule mutations.
type Evaluator struct {
	devices  DeviceResolver
	source   RuleSource
	snapshot atomic.Pointer[[]Rule]
	handler  atomic.Pointer[ActionHandler]
	logger   Logger
}

// NewEvaluator creates an evaluator over the given rule source and
// device resolver. Call Reload to take the first snapshot.
func NewEvaluator(source RuleSource, devices DeviceResolver) *Evaluator {
	e := &Evaluator{
		devices: devices,
		source:  source,
		logger:  noopLogger{},
	}
	empty := []Rule{}
	e.snapshot.Store(&empty)
	return e
}

// SetLogger sets the logger for the evaluator.
func (e *Evaluator) SetLogger(logger Logger) {
	e.logger = logger
}

// Reload replaces the snapshot with the currently-enabled rules.
func (e *Evaluator) Reload() error {
	enabled := e.source.Enabled()
	e.snapshot.Store(&enabled)
	e.logger.Info("rule snapshot reloaded", "enabled", len(enabled))
	return nil
}

// TriggerTopics returns the distinct trigger topics across the current
// snapshot. Together with the registry's status topics these drive the
// bus subscription set.
func (e *Evaluator) TriggerTopics() []string {
	rules := *e.snapshot.Load()

	seen := make(map[string]struct{})
	topics := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Trigger.Topic == "" {
			continue
		}
		if _, dup := seen[r.Trigger.Topic]; dup {
			continue
		}
		seen[r.Trigger.Topic] = struct{}{}
		topics = append(topics, r.Trigger.Topic)
	}
	return topics
}

// SetActionHandler injects the callback that receives resolved actions.
func (e *Evaluator) SetActionHandler(fn ActionHandler) {
	e.handler.Store(&fn)
}

// Process evaluates every enabled rule against one incoming message.
//
// Rules run in file order; each firing is independent, and a failure in
// one rule never stops the others. Without an action handler the call
// is a logged no-op.
func (e *Evaluator) Process(topic string, payload map[string]any) {
	handlerPtr := e.handler.Load()
	if handlerPtr == nil || *handlerPtr == nil {
		e.logger.Warn("no action handler set, skipping rule evaluation", "topic", topic)
		return
	}
	handler := *handlerPtr

	for _, rule := range *e.snapshot.Load() {
		if rule.Trigger.Topic != topic || rule.Trigger.Condition == nil {
			continue
		}
		cond := rule.Trigger.Condition

		value, ok := e.extractValue(topic, payload, cond.DataKey)
		if !ok {
			continue
		}

		e.logger.Debug("checking rule condition",
			"rule", rule.Name, "data_key", cond.DataKey, "value", value)

		if !e.evaluateCondition(cond, value, rule.Name) {
			continue
		}

		e.logger.Info("rule triggered", "rule_id", rule.ID, "rule", rule.Name, "topic", topic)
		e.fire(&rule, handler)
	}
}

// fire resolves a triggered rule's action and hands it to the handler.
func (e *Evaluator) fire(rule *Rule, handler ActionHandler) {
	action := rule.Action
	if action == nil {
		e.logger.Warn("rule triggered but has no action", "rule", rule.Name)
		return
	}

	switch action.Type {
	case ActionDeviceCommand:
		if action.DeviceID == "" || action.Command == "" {
			e.logger.Warn("device_command action missing device_id or command", "rule", rule.Name)
			return
		}
		topic, payload, err := e.devices.ResolveCommand(action.DeviceID, action.Command, action.Params)
		if err != nil {
			// Typical after the target device was deleted out from
			// under the rule; the rule stays, the firing is skipped.
			e.logger.Warn("resolving command failed, skipping rule action",
				"rule", rule.Name, "device_id", action.DeviceID, "command", action.Command, "error", err)
			return
		}
		handler(ResolvedAction{Topic: topic, Payload: payload})

	case ActionMQTTPublish:
		if action.Topic == "" || action.Payload == nil {
			e.logger.Warn("mqtt_publish action missing topic or payload", "rule", rule.Name)
			return
		}
		handler(ResolvedAction{Topic: action.Topic, Payload: action.Payload})

	default:
		e.logger.Warn("unsupported action type", "rule", rule.Name, "type", string(action.Type))
	}
}

// extractValue reads the condition's data key out of the payload,
// honouring the owning device's payload format. A missing key or a
// JSON null skips the rule.
func (e *Evaluator) extractValue(topic string, payload map[string]any, dataKey string) (any, bool) {
	if d, ok := e.devices.FindByStatusTopic(topic); ok && d.IsNestedParams() {
		params, ok := payload["params"].(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := params[dataKey]
		return value, ok && value != nil
	}

	value, ok := payload[dataKey]
	return value, ok && value != nil
}

// evaluateCondition compares a payload value against the condition's
// threshold. Both sides are coerced to float when possible; otherwise
// equality operators fall back to string comparison and ordered
// operators evaluate to false.
func (e *Evaluator) evaluateCondition(cond *Condition, value any, ruleName string) bool {
	data, dataOK := coerceFloat(value)
	threshold, thresholdOK := coerceFloat(cond.Value)

	if dataOK && thresholdOK {
		switch cond.Operator {
		case OpGreater:
			return data > threshold
		case OpLess:
			return data < threshold
		case OpGreaterEq:
			return data >= threshold
		case OpLessEq:
			return data <= threshold
		case OpEqual:
			return data == threshold
		case OpNotEqual:
			return data != threshold
		default:
			e.logger.Warn("unsupported operator", "rule", ruleName, "operator", string(cond.Operator))
			return false
		}
	}

	switch cond.Operator {
	case OpEqual:
		return stringify(value) == stringify(cond.Value)
	case OpNotEqual:
		return stringify(value) != stringify(cond.Value)
	default:
		e.logger.Warn("non-numeric value for ordered comparison",
			"rule", ruleName, "operator", string(cond.Operator), "value", value)
		return false
	}
}

// coerceFloat converts numbers and numeric strings to float64.
func coerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
