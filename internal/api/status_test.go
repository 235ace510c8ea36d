package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthd/hearth-core/internal/state"
)

// ─── Device State Tests ────────────────────────────────────────────

func TestDeviceState(t *testing.T) {
	srv := testServer(t)
	seedSensor(t, srv, "sensor_lr", "/h/sensors/lr/temp")
	if _, ok := srv.states.Apply("/h/sensors/lr/temp", map[string]any{"temp": 30.0}); !ok {
		t.Fatal("expected state to apply")
	}
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status/device/sensor_lr", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var entry state.Entry
	if err := json.Unmarshal(env.Data, &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}

	if entry.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if temp, ok := entry.State["temp"].(float64); !ok || temp != 30 {
		t.Errorf("state temp = %v, want 30", entry.State["temp"])
	}
}

func TestDeviceState_NeverReported(t *testing.T) {
	srv := testServer(t)
	seedSensor(t, srv, "sensor_quiet", "/h/sensors/quiet/temp")
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status/device/sensor_quiet", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	env := decodeEnvelope(t, w)
	if env.Message != "设备存在，但尚无状态记录" {
		t.Errorf("message = %q, want 设备存在，但尚无状态记录", env.Message)
	}
}

func TestDeviceState_UnknownDevice(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status/device/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	env := decodeEnvelope(t, w)
	if env.Message != "设备 ID 'ghost' 未找到" {
		t.Errorf("message = %q, want 设备 ID 'ghost' 未找到", env.Message)
	}
}

// ─── Type-Filtered State Tests ─────────────────────────────────────

func TestSensorStates_FiltersByType(t *testing.T) {
	srv := testServer(t)
	seedSensor(t, srv, "sensor_lr", "/h/sensors/lr/temp")
	seedActuator(t, srv)

	srv.states.Apply("/h/sensors/lr/temp", map[string]any{"temp": 21.5})
	srv.states.Apply("/h/dev/ac_lr/status", map[string]any{"mode": "cool"})

	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status/sensors", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	env := decodeEnvelope(t, w)
	var entries map[string]state.Entry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("unmarshal entries: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(entries), entries)
	}
	if _, ok := entries["sensor_lr"]; !ok {
		t.Error("sensor_lr missing from sensor states")
	}
}

func TestActuatorStates_FiltersByType(t *testing.T) {
	srv := testServer(t)
	seedSensor(t, srv, "sensor_lr", "/h/sensors/lr/temp")
	seedActuator(t, srv)

	srv.states.Apply("/h/sensors/lr/temp", map[string]any{"temp": 21.5})
	srv.states.Apply("/h/dev/ac_lr/status", map[string]any{"mode": "cool"})

	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status/actuators", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	env := decodeEnvelope(t, w)
	var entries map[string]state.Entry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("unmarshal entries: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(entries), entries)
	}
	if _, ok := entries["ac_lr"]; !ok {
		t.Error("ac_lr missing from actuator states")
	}
}

func TestAllStates(t *testing.T) {
	srv := testServer(t)
	seedSensor(t, srv, "sensor_lr", "/h/sensors/lr/temp")
	seedActuator(t, srv)

	srv.states.Apply("/h/sensors/lr/temp", map[string]any{"temp": 21.5})
	srv.states.Apply("/h/dev/ac_lr/status", map[string]any{"mode": "cool"})

	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status/all", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	env := decodeEnvelope(t, w)
	var entries map[string]state.Entry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("unmarshal entries: %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestStates_Unavailable(t *testing.T) {
	srv := testServer(t)
	srv.states = nil
	router := srv.buildRouter()

	for _, path := range []string{
		"/api/engine/status/sensors",
		"/api/engine/status/actuators",
		"/api/engine/status/device/x",
		"/api/engine/status/all",
		"/api/engine/dashboard/status",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusServiceUnavailable)
			continue
		}
		env := decodeEnvelope(t, w)
		if env.Message != "服务 'states' 当前不可用。" {
			t.Errorf("%s: message = %q", path, env.Message)
		}
	}
}

// ─── Dashboard Tests ───────────────────────────────────────────────

func TestDashboardStatus(t *testing.T) {
	srv := testServer(t)
	seedSensor(t, srv, "sensor_lr", "/h/sensors/lr/temp")
	seedSensor(t, srv, "sensor_new", "/h/sensors/new/temp")

	srv.states.Apply("/h/sensors/lr/temp", map[string]any{"temp": 19.0})

	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/engine/dashboard/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	env := decodeEnvelope(t, w)
	var data struct {
		Devices   map[string]json.RawMessage `json:"devices"`
		Timestamp string                     `json:"timestamp"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}

	if data.Timestamp == "" {
		t.Error("dashboard timestamp should be set")
	}
	if len(data.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(data.Devices))
	}

	var reported struct {
		Definition   json.RawMessage `json:"definition"`
		CurrentState map[string]any  `json:"current_state"`
		LastUpdated  *string         `json:"last_updated"`
	}
	if err := json.Unmarshal(data.Devices["sensor_lr"], &reported); err != nil {
		t.Fatalf("unmarshal sensor_lr: %v", err)
	}
	if reported.CurrentState["temp"] != 19.0 {
		t.Errorf("sensor_lr temp = %v, want 19", reported.CurrentState["temp"])
	}
	if reported.LastUpdated == nil {
		t.Error("sensor_lr last_updated should be set")
	}

	var silent struct {
		CurrentState map[string]any `json:"current_state"`
		LastUpdated  *string        `json:"last_updated"`
	}
	if err := json.Unmarshal(data.Devices["sensor_new"], &silent); err != nil {
		t.Fatalf("unmarshal sensor_new: %v", err)
	}
	if len(silent.CurrentState) != 0 {
		t.Errorf("sensor_new current_state = %v, want empty", silent.CurrentState)
	}
	if silent.LastUpdated != nil {
		t.Errorf("sensor_new last_updated = %v, want null", *silent.LastUpdated)
	}
}
