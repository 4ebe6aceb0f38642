package tsp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/dispatch/tsp"
)

func TestSolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/solve", r.URL.Path)

		var req map[string][][]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req["matrix"], 3)

		fmt.Fprint(w, `{"tour":[0,2,1],"tour_length":4515}`)
	}))
	defer server.Close()

	matrix := [][]float64{
		{0, 10, 20},
		{10, 0, 5},
		{20, 5, 0},
	}
	tour, cost, err := tsp.New(server.URL + "/solve").Solve(context.Background(), matrix)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, tour)
	assert.Equal(t, 4515.0, cost)
}

func TestSolve_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		fmt.Fprint(w, `{"error":"solver timed out"}`)
	}))
	defer server.Close()

	_, _, err := tsp.New(server.URL+"/solve").Solve(context.Background(), [][]float64{{0, 1}, {1, 0}})
	assert.ErrorContains(t, err, "504")
}

func TestSolve_TourLengthMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tour":[0,1],"tour_length":3}`)
	}))
	defer server.Close()

	_, _, err := tsp.New(server.URL+"/solve").Solve(context.Background(), [][]float64{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}})
	assert.ErrorContains(t, err, "want 3")
}
