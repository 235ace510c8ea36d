// Package api implements the HTTP REST API and WebSocket server for Hearth Core.
//
// This package provides:
//   - REST endpoints for device CRUD, rule CRUD, state queries, and commands
//   - WebSocket hub for real-time state change and command broadcasts
//   - JWT bearer authentication (optional, config-driven)
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server sits between user interfaces (dashboards, mobile apps, CLI
// tooling) and the device registry + MQTT bus. Commands flow from the API to
// devices via MQTT, and state changes flow back via MQTT subscriptions which
// are broadcast to WebSocket clients.
//
// # Response Envelope
//
// Every /api response body is a uniform envelope:
//
//	{"code": 200, "message": "...", "data": ...}
//
// where code mirrors the HTTP status. Handlers that already produce an
// envelope are passed through unchanged rather than double-wrapped.
//
// # Graceful Degradation
//
// The server operates without the MQTT bus — reads and WebSocket connections
// work, only device commands fail with 503. This enables testing and partial
// operation while the broker is down.
package api
