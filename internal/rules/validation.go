package rules

import (
	"fmt"

	"github.com/google/uuid"
)

// LookupKey selects whether rules are addressed by ID or by name.
type LookupKey string

// Lookup keys.
const (
	ByID   LookupKey = "id"
	ByName LookupKey = "name"
)

// ParseLookupKey validates a lookup key from a query string.
// The empty string defaults to ByID.
func ParseLookupKey(s string) (LookupKey, error) {
	switch s {
	case "", "id":
		return ByID, nil
	case "name":
		return ByName, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLookupKey, s)
	}
}

// ValidateRule checks a rule definition before it is persisted.
// Returns an error describing the first validation failure found.
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrInvalidRule
	}

	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.Trigger.Topic == "" {
		return fmt.Errorf("%w: trigger.topic is required", ErrInvalidRule)
	}

	if cond := r.Trigger.Condition; cond != nil {
		if cond.DataKey == "" {
			return fmt.Errorf("%w: condition.data_key is required", ErrInvalidRule)
		}
		switch cond.Operator {
		case OpGreater, OpLess, OpGreaterEq, OpLessEq, OpEqual, OpNotEqual:
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, cond.Operator)
		}
	}

	if r.Action == nil {
		return fmt.Errorf("%w: action is required", ErrInvalidRule)
	}
	switch r.Action.Type {
	case ActionDeviceCommand:
		if r.Action.DeviceID == "" || r.Action.Command == "" {
			return fmt.Errorf("%w: device_command requires device_id and command", ErrInvalidRule)
		}
	case ActionMQTTPublish:
		if r.Action.Topic == "" {
			return fmt.Errorf("%w: mqtt_publish requires a topic", ErrInvalidRule)
		}
		if r.Action.Payload == nil {
			return fmt.Errorf("%w: mqtt_publish requires a payload", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidRule, r.Action.Type)
	}

	return nil
}

// GenerateID creates a new UUID for a rule added without an explicit ID.
func GenerateID() string {
	return uuid.New().String()
}
