package mqtt

import "fmt"

// Device status and command topics are absolute strings taken from device
// definitions, so this package builds only the topics it owns itself: the
// client presence topic used for the online announcement and the Last Will.

// StatusTopic returns the presence topic for a client under the configured
// topic base.
//
// Example: smart_home/status/hearth-core-a1b2c3d4
func StatusTopic(topicBase, clientID string) string {
	return fmt.Sprintf("%s/status/%s", topicBase, clientID)
}
