package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeShape(coords [][]float64) string {
	return string(shapeCodec.EncodeCoords(nil, coords))
}

func TestRoute_DerivesWaypointsAndCoordinates(t *testing.T) {
	shape := encodeShape([][]float64{
		{37.5299, 126.9648},
		{37.5200, 127.0000},
		{37.5172, 127.0473},
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/route", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		options := req["costing_options"].(map[string]any)["auto"].(map[string]any)
		assert.Equal(t, true, options["use_live_traffic"])

		resp := map[string]any{
			"trip": map[string]any{
				"summary": map[string]any{"time": 600.0, "length": 8.2},
				"legs": []any{map[string]any{
					"summary": map[string]any{"time": 600.0, "length": 8.2},
					"maneuvers": []any{
						map[string]any{"instruction": "출발", "time": 300.0, "length": 4.0, "begin_shape_index": 0},
						map[string]any{"instruction": "도착", "time": 300.0, "length": 4.2, "begin_shape_index": 2},
					},
					"shape": shape,
				}},
			},
		}
		writeBody(w, resp)
	}))
	defer server.Close()

	client := New(server.URL)
	route, err := client.Route(context.Background(), Location{37.5299, 126.9648}, Location{37.5172, 127.0473})
	require.NoError(t, err)

	require.Len(t, route.Coordinates, 3)
	assert.InDelta(t, 37.5299, route.Coordinates[0].Lat, 0.00001)
	assert.InDelta(t, 127.0473, route.Coordinates[2].Lon, 0.00001)

	require.Len(t, route.Waypoints, 2)
	assert.Equal(t, "출발", route.Waypoints[0].Instruction)
	assert.InDelta(t, 37.5299, route.Waypoints[0].Lat, 0.00001)
	assert.Equal(t, "도착", route.Waypoints[1].Instruction)
	assert.InDelta(t, 127.0473, route.Waypoints[1].Lon, 0.00001)
}

func TestRoute_NoLegsIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]any{"trip": map[string]any{"legs": []any{}}})
	}))
	defer server.Close()

	_, err := New(server.URL).Route(context.Background(), Location{}, Location{})
	assert.ErrorContains(t, err, "no legs")
}

func TestTimeMatrix_NullsBecomePenalty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/matrix", r.URL.Path)
		fmt.Fprint(w, `{"sources_to_targets":[
			[{"time":0,"distance":0},{"time":540,"distance":7.8}],
			[null,{"time":0,"distance":0}]
		]}`)
	}))
	defer server.Close()

	locations := []Location{{37.53, 126.96}, {37.51, 127.04}}
	matrix, err := New(server.URL).TimeMatrix(context.Background(), locations)
	require.NoError(t, err)

	assert.Equal(t, 540.0, matrix[0][1])
	assert.Equal(t, float64(UnreachablePenalty), matrix[1][0])
	assert.Equal(t, 0.0, matrix[0][0])
}

func TestTimeMatrix_ShapeErrors(t *testing.T) {
	cases := map[string]string{
		"row count":    `{"sources_to_targets":[[{"time":0},{"time":1}]]}`,
		"column count": `{"sources_to_targets":[[{"time":0}],[{"time":0}]]}`,
		"all nulls":    `{"sources_to_targets":[[null,null],[null,null]]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer server.Close()

			locations := []Location{{37.53, 126.96}, {37.51, 127.04}}
			_, err := New(server.URL).TimeMatrix(context.Background(), locations)
			assert.Error(t, err)
		})
	}
}

func TestTimeMatrix_NeedsTwoLocations(t *testing.T) {
	_, err := New("http://127.0.0.1:1").TimeMatrix(context.Background(), []Location{{37.5, 127.0}})
	assert.Error(t, err)
}

func TestStraightLine(t *testing.T) {
	hub := Location{Lat: 37.5299, Lon: 126.9648}
	dest := Location{Lat: 37.5172, Lon: 127.0473}

	route := StraightLine(hub, dest)

	// Roughly 7.4 km across town, timed at 30 km/h.
	assert.InDelta(t, 7.4, route.Trip.Summary.Length, 0.5)
	assert.InDelta(t, route.Trip.Summary.Length/30*3600, route.Trip.Summary.Time, 0.001)

	require.Len(t, route.Coordinates, 2)
	assert.InDelta(t, hub.Lat, route.Coordinates[0].Lat, 0.00001)
	assert.InDelta(t, dest.Lon, route.Coordinates[1].Lon, 0.00001)

	require.Len(t, route.Waypoints, 1)
	assert.Equal(t, "목적지로 이동", route.Waypoints[0].Instruction)
}

func writeBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
