package routing

import (
	"math"

	"github.com/twpayne/go-polyline"
)

// shapeCodec decodes engine shapes, which use precision 6.
var shapeCodec = polyline.Codec{Dim: 2, Scale: 1e6}

// Route is the route artifact returned to drivers: the engine trip plus the
// derived decoded polyline and per-maneuver waypoints.
type Route struct {
	Trip        Trip       `json:"trip"`
	Waypoints   []Waypoint `json:"waypoints"`
	Coordinates []Location `json:"coordinates"`
}

type Trip struct {
	Summary Summary `json:"summary"`
	Legs    []Leg   `json:"legs"`
}

type Summary struct {
	Time   float64 `json:"time"`
	Length float64 `json:"length"`
}

type Leg struct {
	Summary   Summary    `json:"summary"`
	Maneuvers []Maneuver `json:"maneuvers"`
	Shape     string     `json:"shape"`
}

type Maneuver struct {
	Instruction     string   `json:"instruction"`
	StreetNames     []string `json:"street_names,omitempty"`
	Time            float64  `json:"time"`
	Length          float64  `json:"length"`
	BeginShapeIndex int      `json:"begin_shape_index"`
}

type Waypoint struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Instruction string  `json:"instruction"`
}

// derive fills Coordinates and Waypoints from the first leg: the full decoded
// shape, and one waypoint per maneuver at its begin_shape_index.
func (r *Route) derive() {
	if len(r.Trip.Legs) == 0 {
		return
	}
	leg := r.Trip.Legs[0]

	coords, _, err := shapeCodec.DecodeCoords([]byte(leg.Shape))
	if err != nil || len(coords) == 0 {
		return
	}
	r.Coordinates = make([]Location, len(coords))
	for i, c := range coords {
		r.Coordinates[i] = Location{Lat: c[0], Lon: c[1]}
	}

	r.Waypoints = make([]Waypoint, 0, len(leg.Maneuvers))
	for _, m := range leg.Maneuvers {
		idx := m.BeginShapeIndex
		if idx < 0 {
			idx = 0
		}
		if idx >= len(r.Coordinates) {
			idx = len(r.Coordinates) - 1
		}
		r.Waypoints = append(r.Waypoints, Waypoint{
			Lat:         r.Coordinates[idx].Lat,
			Lon:         r.Coordinates[idx].Lon,
			Instruction: m.Instruction,
		})
	}
}

const earthRadiusKm = 6371.0

// StraightLine builds a degraded route artifact when the engine is
// unavailable: a two-point shape with one synthetic maneuver, timed at an
// urban average speed.
func StraightLine(from, to Location) *Route {
	distKm := haversineKm(from, to)
	const avgSpeedKmh = 30.0
	timeSec := distKm / avgSpeedKmh * 3600

	shape := shapeCodec.EncodeCoords(nil, [][]float64{{from.Lat, from.Lon}, {to.Lat, to.Lon}})
	r := &Route{
		Trip: Trip{
			Summary: Summary{Time: timeSec, Length: distKm},
			Legs: []Leg{{
				Summary: Summary{Time: timeSec, Length: distKm},
				Maneuvers: []Maneuver{{
					Instruction:     "목적지로 이동",
					Time:            timeSec,
					Length:          distKm,
					BeginShapeIndex: 0,
				}},
				Shape: string(shape),
			}},
		},
	}
	r.derive()
	return r
}

func haversineKm(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
