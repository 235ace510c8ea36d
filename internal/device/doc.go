// Package device provides the Device Registry for Hearth Core.
//
// The Device Registry is the central catalogue of all sensors and
// actuators in a Hearth installation. It owns the definitions file,
// validates incoming definitions, and resolves commands into publishable
// MQTT topic/payload pairs for the bus and the REST API.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                                 │
//	│                                                                          │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │     Registry     │    │     Template     │    │    Validation    │   │
//	│  │   (registry.go)  │───▶│  (template.go)   │    │ (validation.go)  │   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • CRUD ops       │    │ • {param} subst. │    │ • Device checks  │   │
//	│  │ • In-memory map  │    │ • Numeric coerce │    │ • Type/topic     │   │
//	│  │ • Atomic persist │    │ • Pure rendering │    │ • ID generation  │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                                                              │
//	└───────────│──────────────────────────────────────────────────────────────┘
//	            │
//	            ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│      REST API        │   │   Devices JSON file  │
//	│  • GET  /devices     │   │  (object keyed by    │
//	│  • POST /devices     │   │   device ID)         │
//	│  • Command execution │   └──────────────────────┘
//	└──────────────────────┘
//
// # Key Types
//
//   - Device: A sensor or actuator definition (topics, fields, commands)
//   - Type: Device kind (sensor, actuator)
//   - Command: A named action with a payload template and parameter schema
//   - PayloadFormat: How telemetry payloads are shaped (flat, nested_params)
//
// # Usage
//
//	// Create the registry and load definitions
//	registry := device.NewRegistry("data/devices.json")
//	registry.SetLogger(log)
//	if err := registry.Load(); err != nil {
//	    return err
//	}
//
//	// Define an actuator
//	dev := &device.Device{
//	    Name:         "Living Room AC",
//	    Type:         device.TypeActuator,
//	    StatusTopic:  "home/living/ac/status",
//	    CommandTopic: "home/living/ac/set",
//	    Commands: map[string]device.Command{
//	        "set_temp": {PayloadTemplate: map[string]any{
//	            "mode":   "cool",
//	            "target": "{t}",
//	        }},
//	    },
//	}
//	stored, err := registry.Add(dev)
//
//	// Resolve a command into an MQTT publish
//	topic, payload, err := registry.ResolveCommand(stored.ID, "set_temp",
//	    map[string]any{"t": 22})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Reads take a shared lock;
// mutations hold the exclusive lock across validation, persistence, and
// the in-memory commit so the file and the map never diverge.
package device
