package device

// Type classifies a device by its role on the bus.
type Type string

// Device types.
const (
	// TypeSensor is a device whose state the system observes by
	// subscribing to its status topic.
	TypeSensor Type = "sensor"

	// TypeActuator is a device the system controls by publishing to its
	// command topic.
	TypeActuator Type = "actuator"
)

// PayloadFormat describes the shape of incoming state payloads.
type PayloadFormat string

// Payload formats.
const (
	// FormatFlat means the whole JSON object is the device state.
	FormatFlat PayloadFormat = "flat"

	// FormatNestedParams means the device wraps its state in a top-level
	// "params" object.
	FormatNestedParams PayloadFormat = "nested_params"
)

// Command describes one named command an actuator accepts.
type Command struct {
	// PayloadTemplate is the outbound payload shape. Normally a JSON
	// object whose string values may contain {name} placeholders; a
	// non-object template is passed through to the bus unchanged.
	PayloadTemplate any `json:"payload_template"`

	// ParamSchema optionally documents the expected parameters.
	// It is informational; rendering only checks placeholder presence.
	ParamSchema map[string]any `json:"param_schema,omitempty"`
}

// Device is one definition from the devices file.
//
// The file stores an object keyed by device ID; the ID is injected into
// the struct on load and stripped again on save.
type Device struct {
	ID            string             `json:"device_id,omitempty"`
	Name          string             `json:"name"`
	Type          Type               `json:"type"`
	StatusTopic   string             `json:"status_topic,omitempty"`
	PayloadFormat PayloadFormat      `json:"payload_format,omitempty"`
	DataFields    []string           `json:"data_fields,omitempty"`
	CommandTopic  string             `json:"command_topic,omitempty"`
	Commands      map[string]Command `json:"commands,omitempty"`
}

// IsNestedParams reports whether incoming state payloads carry the extra
// "params" wrapper. An unset format defaults to flat.
func (d *Device) IsNestedParams() bool {
	return d.PayloadFormat == FormatNestedParams
}

// DeepCopy creates a complete independent copy of the Device.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	if d.DataFields != nil {
		cpy.DataFields = make([]string, len(d.DataFields))
		copy(cpy.DataFields, d.DataFields)
	}

	if d.Commands != nil {
		cpy.Commands = make(map[string]Command, len(d.Commands))
		for name, cmd := range d.Commands {
			cpy.Commands[name] = Command{
				PayloadTemplate: deepCopyValue(cmd.PayloadTemplate),
				ParamSchema:     deepCopyMap(cmd.ParamSchema),
			}
		}
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

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
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
		// Scalars (string, float64, bool, nil) are immutable
		return v
	}
}
