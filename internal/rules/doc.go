// Package rules provides the rule store and evaluator for Hearth Core.
//
// The Store owns the rules file (a JSON array, file order = evaluation
// order) and notifies a change hook after every successful mutation.
// The Evaluator keeps an immutable snapshot of the enabled rules,
// matches incoming bus messages against their triggers, and hands
// resolved actions to the bus client for publishing.
//
// # Rule anatomy
//
//	{
//	  "id": "r1",
//	  "name": "cool the living room",
//	  "enabled": true,
//	  "trigger": {
//	    "topic": "/h/sensors/lr/temp",
//	    "condition": {"data_key": "temp", "operator": ">", "value": 28}
//	  },
//	  "action": {
//	    "type": "device_command",
//	    "device_id": "ac_lr", "command": "cool", "params": {"t": 22}
//	  }
//	}
//
// Conditions compare numerically when both sides coerce to float;
// equality operators fall back to string comparison, ordered operators
// on non-numeric values evaluate to false. Actions either resolve a
// named device command through the registry (device_command) or
// publish a literal topic/payload pair (mqtt_publish).
package rules
