package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthd/hearth-core/internal/device"
)

// handleSensorStates returns the cached state of every sensor device.
func (s *Server) handleSensorStates(w http.ResponseWriter, _ *http.Request) {
	if s.states == nil {
		writeUnavailable(w, "states")
		return
	}

	writeEnvelope(w, http.StatusOK, "获取成功", s.states.ByType(device.TypeSensor))
}

// handleActuatorStates returns the cached state of every actuator device.
func (s *Server) handleActuatorStates(w http.ResponseWriter, _ *http.Request) {
	if s.states == nil {
		writeUnavailable(w, "states")
		return
	}

	writeEnvelope(w, http.StatusOK, "获取成功", s.states.ByType(device.TypeActuator))
}

// handleDeviceState returns the latest cached state entry for one device.
//
// A device that is defined but has never reported distinguishes itself
// from an unknown ID: both are 404, with different messages.
func (s *Server) handleDeviceState(w http.ResponseWriter, r *http.Request) {
	if s.states == nil {
		writeUnavailable(w, "states")
		return
	}

	id := chi.URLParam(r, "id")

	if entry, ok := s.states.Get(id); ok {
		writeEnvelope(w, http.StatusOK, "获取成功", entry)
		return
	}

	if _, err := s.registry.Get(id); err == nil {
		writeError(w, http.StatusNotFound, "设备存在，但尚无状态记录")
		return
	}

	writeError(w, http.StatusNotFound, fmt.Sprintf("设备 ID '%s' 未找到", id))
}

// handleAllStates returns the full state cache keyed by device ID.
func (s *Server) handleAllStates(w http.ResponseWriter, _ *http.Request) {
	if s.states == nil {
		writeUnavailable(w, "states")
		return
	}

	writeEnvelope(w, http.StatusOK, "获取成功", s.states.All())
}

// handleDashboardStatus joins the device registry with the state cache
// into one consolidated view. Devices that have never reported get an
// empty current_state and a null last_updated; devices without a
// definition never appear, whatever the cache holds.
func (s *Server) handleDashboardStatus(w http.ResponseWriter, _ *http.Request) {
	if s.states == nil {
		writeUnavailable(w, "states")
		return
	}

	devices := s.registry.List()
	entries := s.states.All()

	dashboard := make(map[string]any, len(devices))
	for id, dev := range devices {
		item := map[string]any{
			"definition":    dev,
			"current_state": map[string]any{},
			"last_updated":  nil,
		}
		if entry, ok := entries[id]; ok {
			item["current_state"] = entry.State
			item["last_updated"] = entry.Timestamp
		}
		dashboard[id] = item
	}

	writeEnvelope(w, http.StatusOK, "获取成功", map[string]any{
		"devices":   dashboard,
		"timestamp": time.Now().UTC(),
	})
}
