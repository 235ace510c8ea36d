package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthd/hearth-core/internal/bus"
	"github.com/hearthd/hearth-core/internal/device"
)

// handleListDevices returns every device definition in the registry.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	writeEnvelope(w, http.StatusOK, "获取成功", map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device definition by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("设备 ID '%s' 未找到", id))
			return
		}
		writeDomainError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "获取成功", dev)
}

// handleCreateDevice registers a new device definition.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeError(w, http.StatusBadRequest, "请求必须是 JSON 格式")
		return
	}

	stored, err := s.registry.Add(&dev)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog("create", "device", stored.ID, subjectFrom(r.Context()), map[string]any{
		"name": stored.Name,
		"type": string(stored.Type),
	})

	writeEnvelope(w, http.StatusCreated, "创建成功", stored)
}

// handleUpdateDevice applies a partial update to a device definition.
// Only the fields present in the body change; the device ID is immutable.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, "请求必须是 JSON 格式")
		return
	}

	updated, err := s.registry.Update(id, partial)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("设备 ID '%s' 未找到", id))
			return
		}
		writeDomainError(w, err)
		return
	}

	s.auditLog("update", "device", id, subjectFrom(r.Context()), map[string]any{
		"fields": mapKeys(partial),
	})

	writeEnvelope(w, http.StatusOK, "更新成功", updated)
}

// handleDeleteDevice removes a device definition. Cached state for the
// device is cleared so stale readings cannot outlive the definition.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.Delete(id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("设备 ID '%s' 未找到", id))
			return
		}
		writeDomainError(w, err)
		return
	}

	if s.states != nil {
		s.states.Clear(id)
	}

	s.auditLog("delete", "device", id, subjectFrom(r.Context()), nil)

	writeEnvelope(w, http.StatusOK, "设备已删除", nil)
}

// DeviceCommand is the request body for POST /devices/command.
type DeviceCommand struct {
	DeviceID string         `json:"device_id"`
	Command  string         `json:"command"`
	Params   map[string]any `json:"params,omitempty"`
}

// handleDeviceCommand resolves a named command against the device's
// command table and publishes the rendered payload to its command topic.
//
// Resolution failures (unknown device, unsupported command, missing
// template parameter) are 4xx; a broker outage is 503. The publish is
// fire-and-forget at QoS 1 — the resulting state change, if any, comes
// back through the device's status topic.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeUnavailable(w, "bus")
		return
	}

	var cmd DeviceCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "请求必须是 JSON 格式")
		return
	}
	if cmd.DeviceID == "" || cmd.Command == "" {
		writeError(w, http.StatusBadRequest, "请求体需要包含 'device_id' 和 'command' 字段")
		return
	}

	topic, payload, err := s.registry.ResolveCommand(cmd.DeviceID, cmd.Command, cmd.Params)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.bus.Publish(topic, payload, 1, false, bus.SourceAPI); err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog("command", "device", cmd.DeviceID, subjectFrom(r.Context()), map[string]any{
		"command": cmd.Command,
		"topic":   topic,
	})

	writeEnvelope(w, http.StatusOK, "命令已发送", map[string]any{
		"topic":   topic,
		"payload": payload,
	})
}

// handleCommandHistory returns the recent outbound command ring,
// newest last.
func (s *Server) handleCommandHistory(w http.ResponseWriter, _ *http.Request) {
	if s.bus == nil {
		writeUnavailable(w, "bus")
		return
	}

	history := s.bus.History()
	writeEnvelope(w, http.StatusOK, "获取成功", map[string]any{
		"commands": history,
		"count":    len(history),
	})
}

// mapKeys returns the keys of m for audit details, order unspecified.
func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
