package api

import (
	"net/http"
	"time"
)

// handleSystemStatus reports a one-page diagnostic view of the engine:
// bus connection state, registry and rule counts, and connected
// WebSocket clients. Components that are not wired in are omitted
// rather than guessed at, so the endpoint always answers.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	data := map[string]any{
		"version":   s.version,
		"timestamp": time.Now().UTC(),
		"devices":   s.registry.Count(),
	}

	if s.bus != nil {
		st := s.bus.Status()
		data["running"] = st.Running
		data["state"] = st.State
		data["connected"] = st.Connected
		data["subscribed_topics"] = st.SubscribedTopics
		data["command_history_count"] = st.HistoryCount
		if st.ClientID != "" {
			data["client_id"] = st.ClientID
		}
	}
	if s.rules != nil {
		total, enabled := s.rules.Count()
		data["rules"] = map[string]int{
			"total":   total,
			"enabled": enabled,
		}
	}
	if s.states != nil {
		data["tracked_states"] = s.states.Count()
	}
	if s.hub != nil {
		data["ws_clients"] = s.hub.ClientCount()
	}

	writeEnvelope(w, http.StatusOK, "获取成功", data)
}
