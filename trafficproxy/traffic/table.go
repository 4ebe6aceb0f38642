// Package traffic maintains the in-memory live road-speed table fed by the
// municipal traffic feed, and exposes whole-cycle snapshots to the proxy
// handlers.
package traffic

import (
	"strings"
	"sync"
	"time"
)

// congestionThresholdKmh gates the global-average fallback when a maneuver's
// street names cannot be matched: the average is only trusted when it
// indicates congestion.
const congestionThresholdKmh = 40.0

// Table is one complete collection cycle of observed speeds. A Table is
// immutable after construction; readers always see a whole cycle.
type Table struct {
	// speeds maps OSM way id -> observed speed in km/h.
	speeds map[string]float64
	// byName maps normalized road name -> observed speed in km/h, populated
	// from feed rows that carry a road name.
	byName map[string]float64

	collectedAt time.Time
	avgSpeed    float64
}

// NewTable builds an immutable table from a cycle's collected speeds.
// names may be nil when the feed did not report road names.
func NewTable(speeds map[string]float64, names map[string]float64, collectedAt time.Time) *Table {
	t := &Table{
		speeds:      make(map[string]float64, len(speeds)),
		byName:      make(map[string]float64, len(names)),
		collectedAt: collectedAt,
	}
	var sum float64
	for id, s := range speeds {
		t.speeds[id] = s
		sum += s
	}
	for name, s := range names {
		t.byName[normalizeRoadName(name)] = s
	}
	if len(t.speeds) > 0 {
		t.avgSpeed = sum / float64(len(t.speeds))
	}
	return t
}

// Len returns the number of way-id entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.speeds)
}

// CollectedAt returns when the cycle that produced this table finished.
func (t *Table) CollectedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.collectedAt
}

// AverageSpeed returns the mean observed speed across all segments, 0 when
// the table is empty.
func (t *Table) AverageSpeed() float64 {
	if t == nil {
		return 0
	}
	return t.avgSpeed
}

// SpeedForWay returns the observed speed for an OSM way id.
func (t *Table) SpeedForWay(wayID string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	s, ok := t.speeds[wayID]
	return s, ok
}

// SpeedForStreets attributes a speed to a maneuver given its street names.
// Name-level matching is attempted first; when that fails the global average
// is used, but only when it indicates congestion. Over/under-attribution is
// tolerated: the contract is best-effort time shaping.
func (t *Table) SpeedForStreets(streetNames []string) (float64, bool) {
	if t == nil || len(t.speeds) == 0 {
		return 0, false
	}
	for _, name := range streetNames {
		if s, ok := t.byName[normalizeRoadName(name)]; ok {
			return s, true
		}
	}
	if t.avgSpeed > 0 && t.avgSpeed < congestionThresholdKmh {
		return t.avgSpeed, true
	}
	return 0, false
}

func normalizeRoadName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

// Holder publishes the current table. The refresh worker is the only writer;
// the swap is a single assignment under the write lock, so a reader observes
// either the prior complete cycle or the new one, never a mixture.
type Holder struct {
	mu    sync.RWMutex
	table *Table
}

// Current returns the latest complete table, nil before the first cycle.
func (h *Holder) Current() *Table {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.table
}

// Publish replaces the current table.
func (h *Holder) Publish(t *Table) {
	h.mu.Lock()
	h.table = t
	h.mu.Unlock()
}
