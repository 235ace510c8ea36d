package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Liveness probe, outside the /api envelope and never authenticated.
	r.Get("/health", s.handleHealth)

	// Engine routes
	r.Route("/api/engine", func(r chi.Router) {
		r.Use(s.requireAuth)

		// Device registry
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			// Registered before /{id} so "command" is never read as a device ID.
			r.Post("/command", s.handleDeviceCommand)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
			})
		})

		// Live state queries
		r.Route("/status", func(r chi.Router) {
			r.Get("/sensors", s.handleSensorStates)
			r.Get("/actuators", s.handleActuatorStates)
			r.Get("/device/{id}", s.handleDeviceState)
			r.Get("/all", s.handleAllStates)
		})

		r.Get("/dashboard/status", s.handleDashboardStatus)

		// Automation rules
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)

			r.Route("/{ident}", func(r chi.Router) {
				r.Get("/", s.handleGetRule)
				r.Put("/", s.handleUpdateRule)
				r.Delete("/", s.handleDeleteRule)
			})
		})

		r.Get("/commands/history", s.handleCommandHistory)
		r.Get("/system/status", s.handleSystemStatus)
		r.Get("/audit", s.handleListAuditLogs)

		// WebSocket event stream (token via query parameter)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
