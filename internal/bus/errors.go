package bus

import "errors"

// ErrNotConnected is returned by Publish while the bus has no broker
// connection (startup before the first connect, a reconnect cycle in
// progress, or a cycle that exhausted its attempts).
// Use errors.Is() to check for it in calling code.
var ErrNotConnected = errors.New("bus: not connected to broker")
