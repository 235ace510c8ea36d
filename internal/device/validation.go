package device

import (
	"fmt"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
)

// ValidateDevice checks a device definition before it is persisted.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}

	switch d.Type {
	case TypeSensor, TypeActuator:
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidDevice)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}

	switch d.PayloadFormat {
	case "", FormatFlat, FormatNestedParams:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPayloadFormat, d.PayloadFormat)
	}

	// Both kinds report state on a status topic
	if d.StatusTopic == "" {
		return fmt.Errorf("%w: status_topic is required", ErrInvalidDevice)
	}

	if d.Type == TypeSensor && len(d.DataFields) == 0 {
		return fmt.Errorf("%w: data_fields is required for sensors", ErrInvalidDevice)
	}

	if d.Type == TypeActuator {
		if d.CommandTopic == "" {
			return fmt.Errorf("%w: command_topic is required for actuators", ErrInvalidDevice)
		}
		if len(d.Commands) == 0 {
			return fmt.Errorf("%w: actuators require at least one command", ErrInvalidDevice)
		}
	}

	return nil
}

// GenerateID creates a new UUID for a device added without an explicit ID.
func GenerateID() string {
	return uuid.New().String()
}
