// Package state provides the per-device state cache for Hearth Core.
//
// The cache maps device IDs to the most recent telemetry seen on each
// device's status topic. The bus client writes on its dispatch path;
// HTTP handlers and the dashboard read concurrently. There is no
// expiry: an entry lives until a newer message replaces it or an
// administrative clear removes it.
package state
