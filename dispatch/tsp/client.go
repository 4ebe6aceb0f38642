// Package tsp is the client for the TSP solver adapter.
package tsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const callTimeout = 30 * time.Second

type Client struct {
	solveURL string
	client   *http.Client
}

// New creates a client. solveURL is the full /solve endpoint, e.g.
// "http://lkh:5001/solve".
func New(solveURL string) *Client {
	return &Client{
		solveURL: solveURL,
		client:   &http.Client{Timeout: callTimeout},
	}
}

type solveRequest struct {
	Matrix [][]float64 `json:"matrix"`
}

type solveResponse struct {
	Tour       []int   `json:"tour"`
	TourLength float64 `json:"tour_length"`
}

// Solve submits the matrix and returns the tour, a permutation of [0, N)
// starting at 0, with its cost.
func (c *Client) Solve(ctx context.Context, matrix [][]float64) ([]int, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	body, err := json.Marshal(solveRequest{Matrix: matrix})
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.solveURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("solver returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed solveResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, 0, fmt.Errorf("decode solver response: %w", err)
	}
	if len(parsed.Tour) != len(matrix) {
		return nil, 0, fmt.Errorf("solver tour has %d nodes, want %d", len(parsed.Tour), len(matrix))
	}
	return parsed.Tour, parsed.TourLength, nil
}
