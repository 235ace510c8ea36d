package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hearthd/hearth-core/internal/bus"
	"github.com/hearthd/hearth-core/internal/device"
	"github.com/hearthd/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthd/hearth-core/internal/rules"
)

// Envelope is the uniform response body for all /api endpoints.
// Code mirrors the HTTP status so clients reading only the body
// can still branch on outcome.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// asEnvelope wraps a payload in an Envelope unless it already is one.
// Handlers normally pass plain data, but anything that constructs its
// own envelope (or a map shaped like one) must not be double-wrapped.
func asEnvelope(status int, message string, v any) Envelope {
	switch e := v.(type) {
	case Envelope:
		return e
	case *Envelope:
		if e != nil {
			return *e
		}
	case map[string]any:
		if len(e) == 3 {
			code, codeOK := envelopeCode(e["code"])
			msg, msgOK := e["message"].(string)
			if codeOK && msgOK {
				if _, hasData := e["data"]; hasData {
					return Envelope{Code: code, Message: msg, Data: e["data"]}
				}
			}
		}
	}
	return Envelope{Code: status, Message: message, Data: v}
}

// envelopeCode accepts an int or a float64 (the type json.Unmarshal
// produces for numbers) as an envelope code.
func envelopeCode(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

// writeEnvelope writes a success envelope with the given status and payload.
func writeEnvelope(w http.ResponseWriter, status int, message string, v any) {
	env := asEnvelope(status, message, v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(env)
}

// writeError writes an error envelope. Data is always null for errors.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(Envelope{Code: status, Message: message, Data: nil})
}

// writeUnavailable writes the 503 envelope used when a component the
// handler depends on has not been wired in or is down.
func writeUnavailable(w http.ResponseWriter, component string) {
	writeError(w, http.StatusServiceUnavailable, "服务 '"+component+"' 当前不可用。")
}

// statusForError maps domain errors onto HTTP status codes. Sentinel
// errors from the device and rules packages carry the classification;
// anything unrecognised is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, rules.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, device.ErrDeviceExists),
		errors.Is(err, rules.ErrRuleExists),
		errors.Is(err, rules.ErrNameConflict):
		return http.StatusConflict
	case errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, device.ErrInvalidDeviceType),
		errors.Is(err, device.ErrInvalidPayloadFormat),
		errors.Is(err, device.ErrCommandNotSupported),
		errors.Is(err, device.ErrMissingParam),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, rules.ErrInvalidLookupKey):
		return http.StatusBadRequest
	case errors.Is(err, bus.ErrNotConnected),
		errors.Is(err, mqtt.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes an error envelope with the status derived
// from the domain error's sentinel classification.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}
