package rules

// Operator is a comparison operator in a rule condition.
type Operator string

// Condition operators.
const (
	OpGreater   Operator = ">"
	OpLess      Operator = "<"
	OpGreaterEq Operator = ">="
	OpLessEq    Operator = "<="
	OpEqual     Operator = "=="
	OpNotEqual  Operator = "!="
)

// AllOperators returns all valid condition operators.
func AllOperators() []Operator {
	return []Operator{OpGreater, OpLess, OpGreaterEq, OpLessEq, OpEqual, OpNotEqual}
}

// ActionType discriminates the rule action variants.
type ActionType string

// Action types.
const (
	// ActionDeviceCommand resolves a named device command through the
	// registry before publishing.
	ActionDeviceCommand ActionType = "device_command"

	// ActionMQTTPublish publishes the action's topic and payload as-is.
	ActionMQTTPublish ActionType = "mqtt_publish"
)

// Condition compares one payload field against a threshold.
type Condition struct {
	// DataKey is the payload field the condition reads.
	DataKey string `json:"data_key"`

	// Operator compares the field value against Value.
	Operator Operator `json:"operator"`

	// Value is the threshold. Numbers and numeric strings compare
	// numerically; anything else falls back to string equality.
	Value any `json:"value"`
}

// Trigger binds a rule to a topic and an optional condition.
// Rules without a condition never fire.
type Trigger struct {
	Topic     string     `json:"topic"`
	Condition *Condition `json:"condition,omitempty"`
}

// Action is what a fired rule does. Exactly one variant is populated,
// selected by Type.
type Action struct {
	Type ActionType `json:"type"`

	// device_command variant
	DeviceID string         `json:"device_id,omitempty"`
	Command  string         `json:"command,omitempty"`
	Params   map[string]any `json:"params,omitempty"`

	// mqtt_publish variant
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Rule is one automation rule from the rules file.
//
// The file stores a JSON array; order in the file is evaluation order.
type Rule struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	Trigger Trigger `json:"trigger"`
	Action  *Action `json:"action,omitempty"`
}

// DeepCopy creates a complete independent copy of the Rule.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}

	cpy := *r

	if r.Trigger.Condition != nil {
		cond := *r.Trigger.Condition
		cond.Value = deepCopyValue(r.Trigger.Condition.Value)
		cpy.Trigger.Condition = &cond
	}

	if r.Action != nil {
		action := *r.Action
		action.Params = deepCopyMap(r.Action.Params)
		action.Payload = deepCopyValue(r.Action.Payload)
		cpy.Action = &action
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
