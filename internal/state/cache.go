package state

import (
	"sync"
	"time"

	"github.com/hearthd/hearth-core/internal/device"
)

// DeviceLookup is the slice of the device registry the cache needs:
// resolving a status topic to its device and enumerating definitions
// for type filters.
type DeviceLookup interface {
	FindByStatusTopic(topic string) (*device.Device, bool)
	List() map[string]device.Device
}

// Logger defines the logging interface used by the Cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entry is the latest observed state for one device.
type Entry struct {
	// Timestamp is when the update was applied, not when the device
	// sampled it.
	Timestamp time.Time `json:"timestamp"`

	// State holds the extracted data fields (unwrapped for devices
	// that report nested_params payloads).
	State map[string]any `json:"state"`

	// LastRawPayload is the payload exactly as it arrived on the bus.
	LastRawPayload map[string]any `json:"last_raw_payload,omitempty"`
}

// Update reports one applied state change to the caller.
type Update struct {
	DeviceID string
	Entry    Entry
}

// Cache holds the last observed state of every device, keyed by device
// ID. Writes come from the bus dispatch path; reads come from HTTP
// handlers and the rule evaluator.
//
// Latest writer wins per device. Entries are never expired; they are
// overwritten by newer messages or removed by an explicit clear.
//
// All public methods are thread-safe. Readers receive deep copies, so a
// handler can never corrupt the cache by mutating a returned map.
type Cache struct {
	devices DeviceLookup
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  Logger
}

// NewCache creates an empty state cache over the given device lookup.
func NewCache(devices DeviceLookup) *Cache {
	return &Cache{
		devices: devices,
		entries: make(map[string]*Entry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// Apply records payload as the latest state of the device whose status
// topic equals topic.
//
// Messages on topics no device claims are dropped. For nested_params
// devices the payload must wrap its data in a "params" object; a payload
// without one is dropped without touching the existing entry.
//
// Returns the applied update and true, or ok=false when the message was
// dropped.
func (c *Cache) Apply(topic string, payload map[string]any) (Update, bool) {
	d, ok := c.devices.FindByStatusTopic(topic)
	if !ok {
		c.logger.Debug("no device for status topic, dropping message", "topic", topic)
		return Update{}, false
	}

	fields := payload
	if d.IsNestedParams() {
		params, ok := payload["params"].(map[string]any)
		if !ok {
			c.logger.Warn("nested_params payload missing params object, dropping",
				"device_id", d.ID, "topic", topic)
			return Update{}, false
		}
		fields = params
	}

	entry := &Entry{
		Timestamp:      time.Now().UTC(),
		State:          fields,
		LastRawPayload: payload,
	}

	c.mu.Lock()
	c.entries[d.ID] = entry
	c.mu.Unlock()

	c.logger.Debug("device state updated", "device_id", d.ID, "topic", topic)
	return Update{DeviceID: d.ID, Entry: *entry.copy()}, true
}

// Get returns the latest entry for a device, or ok=false when no state
// has been observed yet.
func (c *Cache) Get(deviceID string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[deviceID]
	if !ok {
		return nil, false
	}
	return entry.copy(), true
}

// All returns every cached entry keyed by device ID.
func (c *Cache) All() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry, len(c.entries))
	for id, entry := range c.entries {
		out[id] = *entry.copy()
	}
	return out
}

// ByType returns the cached entries whose device definition has the
// requested type.
func (c *Cache) ByType(t device.Type) map[string]Entry {
	devices := c.devices.List()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry)
	for id, d := range devices {
		if d.Type != t {
			continue
		}
		if entry, ok := c.entries[id]; ok {
			out[id] = *entry.copy()
		}
	}
	return out
}

// Clear drops the cached entry for one device.
// Reports whether an entry existed.
func (c *Cache) Clear(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[deviceID]; !ok {
		return false
	}
	delete(c.entries, deviceID)
	return true
}

// ClearAll drops every cached entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Count returns the number of devices with cached state.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// copy creates an independent copy of the entry so callers can never
// mutate cached maps.
func (e *Entry) copy() *Entry {
	return &Entry{
		Timestamp:      e.Timestamp,
		State:          deepCopyMap(e.State),
		LastRawPayload: deepCopyMap(e.LastRawPayload),
	}
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
