// Package routing is the client for the traffic-aware routing proxy: turn by
// turn routes and travel-time matrices, with live traffic requested on both.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	routeTimeout  = 30 * time.Second
	matrixTimeout = 60 * time.Second
	costingModel  = "auto"

	// UnreachablePenalty replaces null matrix cells so the solver sees a
	// finite, strongly discouraged edge.
	UnreachablePenalty = 9999999
)

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client against the proxy base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: matrixTimeout},
	}
}

// Route requests a turn-by-turn route between two points and derives the
// waypoints and decoded coordinates from the engine response.
func (c *Client) Route(ctx context.Context, from, to Location) (*Route, error) {
	ctx, cancel := context.WithTimeout(ctx, routeTimeout)
	defer cancel()

	payload := map[string]any{
		"locations": []Location{from, to},
		"costing":   costingModel,
		"directions_options": map[string]any{
			"units":    "kilometers",
			"language": "ko-KR",
		},
		"costing_options": map[string]any{
			costingModel: map[string]any{"use_live_traffic": true},
		},
	}

	body, err := c.post(ctx, "/route", payload)
	if err != nil {
		return nil, err
	}

	var route Route
	if err := json.Unmarshal(body, &route); err != nil {
		return nil, fmt.Errorf("decode route response: %w", err)
	}
	if len(route.Trip.Legs) == 0 {
		return nil, fmt.Errorf("route response has no legs")
	}
	route.derive()
	return &route, nil
}

type matrixResponse struct {
	SourcesToTargets [][]*struct {
		Time     *float64 `json:"time"`
		Distance *float64 `json:"distance"`
	} `json:"sources_to_targets"`
}

// TimeMatrix requests an all-pairs travel-time matrix in seconds. Null cells
// (unreachable pairs) become UnreachablePenalty.
func (c *Client) TimeMatrix(ctx context.Context, locations []Location) ([][]float64, error) {
	if len(locations) < 2 {
		return nil, fmt.Errorf("matrix needs at least two locations, got %d", len(locations))
	}

	ctx, cancel := context.WithTimeout(ctx, matrixTimeout)
	defer cancel()

	payload := map[string]any{
		"sources": locations,
		"targets": locations,
		"costing": costingModel,
		"units":   "kilometers",
		"costing_options": map[string]any{
			costingModel: map[string]any{"use_live_traffic": true},
		},
	}

	body, err := c.post(ctx, "/matrix", payload)
	if err != nil {
		return nil, err
	}

	var parsed matrixResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}
	n := len(locations)
	if len(parsed.SourcesToTargets) != n {
		return nil, fmt.Errorf("matrix response has %d rows, want %d", len(parsed.SourcesToTargets), n)
	}

	matrix := make([][]float64, n)
	found := 0
	for i, row := range parsed.SourcesToTargets {
		matrix[i] = make([]float64, n)
		if len(row) != n {
			return nil, fmt.Errorf("matrix row %d has %d cells, want %d", i, len(row), n)
		}
		for j, cell := range row {
			if cell == nil || cell.Time == nil {
				matrix[i][j] = UnreachablePenalty
				continue
			}
			matrix[i][j] = *cell.Time
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("matrix response has no reachable pairs")
	}
	return matrix, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing proxy %s returned status %d: %s", path, resp.StatusCode, respBody)
	}
	return respBody, nil
}
