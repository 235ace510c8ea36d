package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when adding a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid definition")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidPayloadFormat is returned when a payload format is not recognised.
	ErrInvalidPayloadFormat = errors.New("device: invalid payload format")

	// ErrCommandNotSupported is returned when a device does not define the
	// requested command.
	ErrCommandNotSupported = errors.New("device: unsupported command")

	// ErrMissingParam is returned when payload rendering references a
	// parameter the caller did not supply.
	ErrMissingParam = errors.New("device: missing template parameter")
)
