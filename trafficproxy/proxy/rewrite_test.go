package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/trafficproxy/traffic"
)

func tripResponse() map[string]any {
	return map[string]any{
		"trip": map[string]any{
			"summary": map[string]any{"time": 300.0, "length": 5.0},
			"legs": []any{
				map[string]any{
					"summary": map[string]any{"time": 300.0, "length": 5.0},
					"maneuvers": []any{
						map[string]any{
							"instruction":  "테헤란로를 따라 직진",
							"street_names": []any{"테헤란로"},
							"time":         120.0,
							"length":       2.0,
						},
						map[string]any{
							"instruction":  "모르는길로 진입",
							"street_names": []any{"모르는길"},
							"time":         180.0,
							"length":       3.0,
						},
					},
				},
			},
		},
	}
}

func TestRewriteTrip_MatchedManeuverGetsObservedSpeed(t *testing.T) {
	// Free-flow average keeps the unmatched maneuver untouched.
	table := traffic.NewTable(
		map[string]float64{"100": 60, "101": 60},
		map[string]float64{"테헤란로": 20},
		time.Now(),
	)
	response := tripResponse()

	rewrote := rewriteTrip(response, table)
	require.True(t, rewrote)

	trip := response["trip"].(map[string]any)
	leg := trip["legs"].([]any)[0].(map[string]any)
	maneuvers := leg["maneuvers"].([]any)

	// 2 km at 20 km/h is 360 s.
	matched := maneuvers[0].(map[string]any)
	assert.InDelta(t, 360.0, matched["time"], 0.001)
	assert.Equal(t, 120.0, matched["original_time"])

	untouched := maneuvers[1].(map[string]any)
	assert.Equal(t, 180.0, untouched["time"])
	_, hasOriginal := untouched["original_time"]
	assert.False(t, hasOriginal)

	// Leg and trip summaries are re-summed from maneuver times.
	legSummary := leg["summary"].(map[string]any)
	assert.InDelta(t, 540.0, legSummary["time"], 0.001)
	assert.Equal(t, 300.0, legSummary["original_time"])

	tripSummary := trip["summary"].(map[string]any)
	assert.InDelta(t, 540.0, tripSummary["time"], 0.001)
	assert.Equal(t, 300.0, tripSummary["original_time"])

	assert.Equal(t, true, trip["has_traffic"])
	assert.Equal(t, 2, trip["traffic_data_count"])
}

func TestRewriteTrip_CongestedAverageAppliesToUnmatched(t *testing.T) {
	table := traffic.NewTable(map[string]float64{"100": 10, "101": 20}, nil, time.Now())
	response := tripResponse()

	rewrote := rewriteTrip(response, table)
	require.True(t, rewrote)

	trip := response["trip"].(map[string]any)
	maneuvers := trip["legs"].([]any)[0].(map[string]any)["maneuvers"].([]any)

	// Average is 15 km/h, under the congestion gate; both maneuvers rewrite.
	first := maneuvers[0].(map[string]any)
	assert.InDelta(t, 480.0, first["time"], 0.001)
	second := maneuvers[1].(map[string]any)
	assert.InDelta(t, 720.0, second["time"], 0.001)
}

func TestRewriteTrip_NoManeuverMatchLeavesSummariesAlone(t *testing.T) {
	// Free-flow table with no matching street names rewrites nothing, even
	// when the engine's summaries disagree with the maneuver sums.
	table := traffic.NewTable(map[string]float64{"100": 55, "101": 60}, nil, time.Now())
	response := tripResponse()
	trip := response["trip"].(map[string]any)
	trip["summary"].(map[string]any)["time"] = 290.0
	leg := trip["legs"].([]any)[0].(map[string]any)
	leg["summary"].(map[string]any)["time"] = 290.0

	rewrote := rewriteTrip(response, table)
	assert.False(t, rewrote)

	legSummary := leg["summary"].(map[string]any)
	assert.Equal(t, 290.0, legSummary["time"])
	_, hasOriginal := legSummary["original_time"]
	assert.False(t, hasOriginal)

	tripSummary := trip["summary"].(map[string]any)
	assert.Equal(t, 290.0, tripSummary["time"])
	_, hasOriginal = tripSummary["original_time"]
	assert.False(t, hasOriginal)
}

func TestWantsLiveTraffic(t *testing.T) {
	assert.True(t, wantsLiveTraffic(map[string]any{
		"costing": "auto",
		"costing_options": map[string]any{
			"auto": map[string]any{"use_live_traffic": true},
		},
	}))
	assert.False(t, wantsLiveTraffic(map[string]any{
		"costing": "auto",
		"costing_options": map[string]any{
			"auto": map[string]any{"use_live_traffic": false},
		},
	}))
	assert.False(t, wantsLiveTraffic(map[string]any{"costing": "auto"}))
	assert.False(t, wantsLiveTraffic(map[string]any{}))
}
