package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File permission constants.
const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the source of truth for device definitions.
//
// Definitions live in a JSON file (an object keyed by device ID) and are
// mirrored in memory for fast lookups. Mutations validate, persist the
// whole file atomically (temp file + rename), and roll the in-memory map
// back if the write fails, so memory and disk never diverge.
//
// All public methods are thread-safe.
type Registry struct {
	path    string
	mu      sync.RWMutex
	devices map[string]*Device
	logger  Logger
}

// NewRegistry creates a registry backed by the given devices file.
// Call Load before first use.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:    path,
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load reads the devices file into memory.
//
// A missing file is not an error: the registry starts empty and the file
// is created on first mutation. A file that cannot be parsed is an error;
// startup should abort rather than run with half a configuration.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("devices file not found, starting with empty registry", "path", r.path)
			r.mu.Lock()
			r.devices = make(map[string]*Device)
			r.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading devices file: %w", err)
	}

	devices := make(map[string]*Device)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &devices); err != nil {
			return fmt.Errorf("parsing devices file %s: %w", r.path, err)
		}
	}

	// The map key is authoritative for the ID
	for id, d := range devices {
		d.ID = id
	}

	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()

	r.logger.Info("device definitions loaded", "path", r.path, "count", len(devices))
	return nil
}

// List returns all device definitions keyed by ID.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) List() map[string]Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Device, len(r.devices))
	for id, d := range r.devices {
		out[id] = *d.DeepCopy()
	}
	return out
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d.DeepCopy(), nil
}

// Add validates and stores a new device definition.
// An empty ID is assigned a generated UUID. Returns the stored definition.
func (r *Registry) Add(d *Device) (*Device, error) {
	if d == nil {
		return nil, ErrInvalidDevice
	}
	if d.ID == "" {
		d.ID = GenerateID()
	}

	if err := ValidateDevice(d); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[d.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, d.ID)
	}

	r.devices[d.ID] = d.DeepCopy()
	if err := r.saveLocked(); err != nil {
		delete(r.devices, d.ID)
		return nil, err
	}

	r.logger.Info("device added", "device_id", d.ID, "name", d.Name, "type", d.Type)
	return d.DeepCopy(), nil
}

// Update shallow-merges a partial definition onto an existing device and
// re-validates the combined result. The ID is immutable: a partial that
// tries to change device_id fails validation. Returns the stored result.
func (r *Registry) Update(id string, partial map[string]any) (*Device, error) {
	if raw, ok := partial["device_id"]; ok {
		if s, ok := raw.(string); !ok || s != id {
			return nil, fmt.Errorf("%w: device_id is immutable", ErrInvalidDevice)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	merged, err := mergeDevice(existing, partial)
	if err != nil {
		return nil, err
	}
	merged.ID = id

	if err := ValidateDevice(merged); err != nil {
		return nil, err
	}

	previous := r.devices[id]
	r.devices[id] = merged
	if err := r.saveLocked(); err != nil {
		r.devices[id] = previous
		return nil, err
	}

	r.logger.Info("device updated", "device_id", id, "name", merged.Name)
	return merged.DeepCopy(), nil
}

// Delete removes a device definition.
// Returns ErrDeviceNotFound if the ID is unknown. Rules referencing the
// device are deliberately left alone; the evaluator skips them at fire
// time (see rules.Evaluator).
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	delete(r.devices, id)
	if err := r.saveLocked(); err != nil {
		r.devices[id] = previous
		return err
	}

	r.logger.Info("device deleted", "device_id", id)
	return nil
}

// StatusTopics returns the set of status topics across all sensor-type
// devices. These drive the bus subscription set.
func (r *Registry) StatusTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	topics := make([]string, 0, len(r.devices))
	for _, d := range r.devices {
		if d.Type != TypeSensor || d.StatusTopic == "" {
			continue
		}
		if _, dup := seen[d.StatusTopic]; dup {
			continue
		}
		seen[d.StatusTopic] = struct{}{}
		topics = append(topics, d.StatusTopic)
	}
	return topics
}

// FindByStatusTopic returns the device whose status topic equals the
// given topic, if any. Topics are assumed unique per device.
func (r *Registry) FindByStatusTopic(topic string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.StatusTopic == topic {
			return d.DeepCopy(), true
		}
	}
	return nil, false
}

// ResolveCommand resolves a (device, command) pair into the publish topic
// and a payload rendered from the command's template.
func (r *Registry) ResolveCommand(deviceID, command string, params map[string]any) (string, any, error) {
	r.mu.RLock()
	d, ok := r.devices[deviceID]
	if !ok {
		r.mu.RUnlock()
		return "", nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	d = d.DeepCopy()
	r.mu.RUnlock()

	if d.CommandTopic == "" {
		return "", nil, fmt.Errorf("%w: device %s has no command_topic", ErrInvalidDevice, deviceID)
	}

	cmd, ok := d.Commands[command]
	if !ok {
		// Operator-facing message preserved verbatim from the deployed
		// system; dashboards match on it.
		return "", nil, fmt.Errorf("%w: 设备 %s 不支持命令: %s", ErrCommandNotSupported, deviceID, command)
	}

	if _, isObject := cmd.PayloadTemplate.(map[string]any); !isObject {
		r.logger.Warn("payload template is not an object, passing through",
			"device_id", deviceID, "command", command)
	}

	payload, err := RenderPayload(cmd.PayloadTemplate, params)
	if err != nil {
		return "", nil, err
	}

	return d.CommandTopic, payload, nil
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// mergeDevice applies a partial JSON object over an existing definition.
// Merging happens at the JSON level so absent keys keep their values and
// present keys replace wholesale (shallow merge).
func mergeDevice(existing *Device, partial map[string]any) (*Device, error) {
	base, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("encoding existing device: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, fmt.Errorf("decoding existing device: %w", err)
	}

	for k, v := range partial {
		fields[k] = v
	}
	delete(fields, "device_id")

	combined, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}

	var merged Device
	if err := json.Unmarshal(combined, &merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}
	return &merged, nil
}

// saveLocked writes the whole device map to disk atomically.
// Callers must hold the write lock; persistence inside the critical
// section keeps memory and file in lockstep.
func (r *Registry) saveLocked() error {
	out := make(map[string]*Device, len(r.devices))
	for id, d := range r.devices {
		cpy := d.DeepCopy()
		cpy.ID = "" // the map key carries the ID in the file
		out[id] = cpy
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding devices: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), dirPermissions); err != nil {
		return fmt.Errorf("creating devices directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing devices file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing devices file: %w", err)
	}
	return nil
}
