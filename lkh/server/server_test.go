package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/lkh/metrics"
	"github.com/P-juuny/tsp-prob/lkh/server"
	"github.com/P-juuny/tsp-prob/lkh/solver"
)

type fakeSolver struct {
	result solver.Result
	err    error

	gotMatrix  solver.Matrix
	gotParams  solver.Params
	gotInitial []int
}

func (f *fakeSolver) Solve(ctx context.Context, m solver.Matrix, p solver.Params, initialTour []int) (solver.Result, error) {
	f.gotMatrix = m
	f.gotParams = p
	f.gotInitial = initialTour
	if f.err != nil {
		return solver.Result{}, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, s server.TSPSolver) *httptest.Server {
	t.Helper()
	srv, err := server.New(server.Config{Logger: slog.Default(), Solver: s})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postSolve(t *testing.T, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/solve", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestSolve_ReturnsTour(t *testing.T) {
	fake := &fakeSolver{result: solver.Result{Tour: []int{0, 2, 1}, Cost: 4515}}
	ts := newTestServer(t, fake)

	resp, body := postSolve(t, ts.URL, `{"matrix":[[0,1,2],[1,0,3],[2,3,0]]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{0.0, 2.0, 1.0}, body["tour"])
	assert.Equal(t, 4515.0, body["tour_length"])

	// Defaults for a 3-node problem come from the size schedule.
	assert.Equal(t, solver.ScheduleFor(3), fake.gotParams)
}

func TestSolve_DistancesAliasAndOverrides(t *testing.T) {
	fake := &fakeSolver{result: solver.Result{Tour: []int{0, 1}, Cost: 7}}
	ts := newTestServer(t, fake)

	resp, _ := postSolve(t, ts.URL, `{"distances":[[0,7],[7,0]],"max_trials":500,"time_limit":3,"seed":9,"initial_tour":[0,1]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, solver.Matrix{{0, 7}, {7, 0}}, fake.gotMatrix)
	assert.Equal(t, 500, fake.gotParams.MaxTrials)
	assert.Equal(t, 3*time.Second, fake.gotParams.TimeLimit)
	assert.Equal(t, 9, fake.gotParams.Seed)
	assert.Equal(t, []int{0, 1}, fake.gotInitial)
}

func TestSolve_BadRequests(t *testing.T) {
	ts := newTestServer(t, &fakeSolver{})

	resp, body := postSolve(t, ts.URL, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "matrix")

	resp, _ = postSolve(t, ts.URL, `{"matrix":[[0,1],[1]]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postSolve(t, ts.URL, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSolve_TimeoutMapsTo504(t *testing.T) {
	ts := newTestServer(t, &fakeSolver{err: solver.ErrTimeout})

	resp, body := postSolve(t, ts.URL, `{"matrix":[[0,1,2],[1,0,3],[2,3,0]]}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "solver timed out", body["error"])
}

func TestSolve_CountsOutcomes(t *testing.T) {
	successBefore := testutil.ToFloat64(metrics.SolvesTotal.WithLabelValues("success"))
	timeoutBefore := testutil.ToFloat64(metrics.SolvesTotal.WithLabelValues("timeout"))

	ts := newTestServer(t, &fakeSolver{result: solver.Result{Tour: []int{0, 1, 2}, Cost: 9}})
	_, _ = postSolve(t, ts.URL, `{"matrix":[[0,1,2],[1,0,3],[2,3,0]]}`)

	slow := newTestServer(t, &fakeSolver{err: solver.ErrTimeout})
	_, _ = postSolve(t, slow.URL, `{"matrix":[[0,1,2],[1,0,3],[2,3,0]]}`)

	assert.Equal(t, successBefore+1, testutil.ToFloat64(metrics.SolvesTotal.WithLabelValues("success")))
	assert.Equal(t, timeoutBefore+1, testutil.ToFloat64(metrics.SolvesTotal.WithLabelValues("timeout")))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeSolver{})
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
