package proxy

import (
	"io"
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	table := s.holder.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"traffic_data_count": table.Len(),
		"valhalla_url":       s.engineURL.String(),
	})
}

// handleStatus relays the engine's own /status so dispatcher health checks
// see the full chain.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	u := *s.engineURL
	u.Path = "/status"

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "status request failed"})
		return
	}
	resp, err := s.engineClient.Do(req)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "routing engine unreachable"})
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, io.LimitReader(resp.Body, maxBodyBytes))
}

func (s *Server) handleTrafficDebug(w http.ResponseWriter, r *http.Request) {
	table := s.holder.Current()
	out := map[string]any{
		"entries":           table.Len(),
		"average_speed_kmh": table.AverageSpeed(),
		"collected_at":      table.CollectedAt(),
	}
	if s.view != nil {
		cycle := s.view.LastCycle()
		out["last_cycle"] = map[string]any{
			"succeeded":   cycle.Succeeded,
			"failed":      cycle.Failed,
			"duration_ms": cycle.Duration.Milliseconds(),
			"finished_at": cycle.FinishedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
