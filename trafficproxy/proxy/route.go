package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/P-juuny/tsp-prob/trafficproxy/metrics"
)

const maxBodyBytes = 4 << 20

// handleRoute forwards a /route request to the engine and, when the caller
// opted in via costing_options.<costing>.use_live_traffic and a speed table
// exists, rewrites the response times.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable request body"})
		return
	}

	var request map[string]any
	if err := json.Unmarshal(body, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	status, engineBody, err := s.forward(r, "/route", body)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("engine").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "routing engine unreachable"})
		return
	}
	// Engine errors surface as-is, original body included.
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(engineBody)
		return
	}

	table := s.holder.Current()
	if !wantsLiveTraffic(request) || table.Len() == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(engineBody)
		return
	}

	var response map[string]any
	if err := json.Unmarshal(engineBody, &response); err != nil {
		s.log.Error("proxy: undecodable engine /route response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(engineBody)
		return
	}

	rewrote := rewriteTrip(response, table)
	s.log.Debug("proxy: route served", "traffic_entries", table.Len(), "rewrote", rewrote)
	writeJSON(w, http.StatusOK, response)
}

// handleMatrix forwards matrix requests to the engine's /sources_to_targets.
// Live-traffic adjustment is not applied on the matrix path.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable request body"})
		return
	}

	status, engineBody, err := s.forward(r, "/sources_to_targets", body)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("engine").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "routing engine unreachable"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(engineBody)
}

// forward posts body to the engine at path and returns the engine's status
// and body.
func (s *Server) forward(r *http.Request, path string, body []byte) (int, []byte, error) {
	u := *s.engineURL
	u.Path = path

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.engineClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
